package main

import (
	"log"
	"path/filepath"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/config"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/indexdb"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/objstore"
	persistlog "github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/log"
)

// recorders holds every sink that sees resolved drops. Any of them may be nil.
type recorders struct {
	journal *persistlog.DropLogger
	index   *indexdb.SQLiteIndex
	webhook *indexdb.WebhookIndex
	archive *objstore.Archiver
}

func openRecorders(cfg config.Config, logger *log.Logger) (*recorders, error) {
	r := &recorders{}
	if cfg.JournalDir != "" {
		r.journal = persistlog.NewDropLogger(cfg.JournalDir)
		if cfg.Archive.Endpoint != "" {
			client, err := objstore.New(objstore.Config{
				Endpoint:        cfg.Archive.Endpoint,
				Bucket:          cfg.Archive.Bucket,
				Region:          cfg.Archive.Region,
				AccessKeyID:     cfg.Archive.AccessKeyID,
				SecretAccessKey: cfg.Archive.SecretAccessKey,
			})
			if err != nil {
				r.Close()
				return nil, err
			}
			// Keys look like <prefix>/journal/drops-YYYY-MM-DD-HH.jsonl.zst.
			r.archive = objstore.NewArchiver(client, filepath.Dir(cfg.JournalDir), cfg.Archive.Prefix, 256, logger)
			r.journal.OnClosed(r.archive.Enqueue)
		}
	}
	if !cfg.DisableIndex && cfg.IndexPath != "" {
		idx, err := indexdb.OpenSQLite(cfg.IndexPath)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.index = idx
	}
	if cfg.Webhook.URL != "" {
		wh, err := indexdb.OpenWebhook(indexdb.WebhookConfig{
			Endpoint:      cfg.Webhook.URL,
			Token:         cfg.Webhook.Token,
			BotID:         cfg.Webhook.BotID,
			BatchSize:     cfg.Webhook.BatchSize,
			FlushInterval: cfg.Webhook.FlushInterval,
			Logger:        logger,
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		r.webhook = wh
	}
	return r, nil
}

func (r *recorders) List() []drop.Recorder {
	var out []drop.Recorder
	if r.journal != nil {
		out = append(out, r.journal)
	}
	if r.index != nil {
		out = append(out, r.index)
	}
	if r.webhook != nil {
		out = append(out, r.webhook)
	}
	return out
}

// Close flushes the journal before the archiver so the last file is uploaded.
func (r *recorders) Close() {
	if r.journal != nil {
		_ = r.journal.Close()
	}
	if r.archive != nil {
		r.archive.Close()
	}
	if r.index != nil {
		_ = r.index.Close()
	}
	if r.webhook != nil {
		_ = r.webhook.Close()
	}
}

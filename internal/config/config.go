// Package config holds the drop bot's runtime settings: a YAML file,
// overridden by DROPBOT_* environment variables, overridden by flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Address is a 32-bit console address that accepts hex ("0xAE5E8B28") or
// decimal text.
type Address uint32

func (a *Address) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 32)
	if err != nil {
		return fmt.Errorf("bad address %q", string(b))
	}
	*a = Address(v)
	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%08X", uint32(a))), nil
}

type Config struct {
	MaxDropCount    int     `yaml:"max_drop_count" env:"DROPBOT_MAX_DROP_COUNT"`
	AllowClean      bool    `yaml:"allow_clean" env:"DROPBOT_ALLOW_CLEAN"`
	DefaultLanguage string  `yaml:"default_language" env:"DROPBOT_DEFAULT_LANGUAGE"`
	InventoryOffset Address `yaml:"inventory_offset" env:"DROPBOT_INVENTORY_OFFSET"`
	OffsetsPath     string  `yaml:"offsets_path" env:"DROPBOT_OFFSETS_PATH"`
	CatalogDir      string  `yaml:"catalog_dir" env:"DROPBOT_CATALOG_DIR"`

	DataDir      string `yaml:"data_dir" env:"DROPBOT_DATA_DIR"`
	JournalDir   string `yaml:"journal_dir" env:"DROPBOT_JOURNAL_DIR"`
	IndexPath    string `yaml:"index_path" env:"DROPBOT_INDEX_PATH"`
	DisableIndex bool   `yaml:"disable_index" env:"DROPBOT_DISABLE_INDEX"`

	InjectTimeout time.Duration `yaml:"inject_timeout" env:"DROPBOT_INJECT_TIMEOUT"`

	SysBot  SysBotConfig  `yaml:"sysbot"`
	Gateway GatewayConfig `yaml:"gateway"`
	Webhook WebhookConfig `yaml:"webhook"`
	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig uploads finished journal files to an S3-compatible bucket.
// Disabled when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint        string `yaml:"endpoint" env:"DROPBOT_ARCHIVE_ENDPOINT"`
	Bucket          string `yaml:"bucket" env:"DROPBOT_ARCHIVE_BUCKET"`
	Region          string `yaml:"region" env:"DROPBOT_ARCHIVE_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"DROPBOT_ARCHIVE_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"DROPBOT_ARCHIVE_SECRET_ACCESS_KEY"`
	Prefix          string `yaml:"prefix" env:"DROPBOT_ARCHIVE_PREFIX"`
}

// WebhookConfig mirrors resolved drops to a remote ingest endpoint. Disabled
// when URL is empty.
type WebhookConfig struct {
	URL           string        `yaml:"url" env:"DROPBOT_WEBHOOK_URL"`
	Token         string        `yaml:"token" env:"DROPBOT_WEBHOOK_TOKEN"`
	BotID         string        `yaml:"bot_id" env:"DROPBOT_WEBHOOK_BOT_ID"`
	BatchSize     int           `yaml:"batch_size" env:"DROPBOT_WEBHOOK_BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"DROPBOT_WEBHOOK_FLUSH_INTERVAL"`
}

type SysBotConfig struct {
	Addr         string        `yaml:"addr" env:"DROPBOT_SYSBOT_ADDR"`
	Timeout      time.Duration `yaml:"timeout" env:"DROPBOT_SYSBOT_TIMEOUT"`
	CleanPresses int           `yaml:"clean_presses" env:"DROPBOT_SYSBOT_CLEAN_PRESSES"`
	// CleanDelay is the pause between pickup presses.
	CleanDelay time.Duration `yaml:"clean_delay" env:"DROPBOT_SYSBOT_CLEAN_DELAY"`
}

type GatewayConfig struct {
	Listen        string `yaml:"listen" env:"DROPBOT_LISTEN"`
	ReadLimit     int64  `yaml:"read_limit" env:"DROPBOT_READ_LIMIT"`
	OutboxSize    int    `yaml:"outbox_size" env:"DROPBOT_OUTBOX_SIZE"`
	AdminLoopback bool   `yaml:"admin_loopback_only" env:"DROPBOT_ADMIN_LOOPBACK_ONLY"`
}

func Default() Config {
	return Config{
		MaxDropCount:    7,
		AllowClean:      true,
		DefaultLanguage: "en",
		InventoryOffset: 0xAE5E8B28,
		CatalogDir:      "./data/catalog",
		DataDir:         "./data",
		InjectTimeout:   10 * time.Second,
		SysBot: SysBotConfig{
			Addr:         "192.168.0.10:6000",
			Timeout:      5 * time.Second,
			CleanPresses: 10,
			CleanDelay:   500 * time.Millisecond,
		},
		Gateway: GatewayConfig{
			Listen:        ":8080",
			ReadLimit:     64 * 1024,
			OutboxSize:    64,
			AdminLoopback: true,
		},
		Webhook: WebhookConfig{
			BatchSize:     64,
			FlushInterval: 500 * time.Millisecond,
		},
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("dropbot.yaml: %w", err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("dropbot.yaml: %w", err)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Normalize() {
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.JournalDir == "" && c.DataDir != "" {
		c.JournalDir = filepath.Join(c.DataDir, "journal")
	}
	if c.IndexPath == "" && c.DataDir != "" {
		c.IndexPath = filepath.Join(c.DataDir, "index", "drops.sqlite")
	}
	if c.SysBot.CleanPresses <= 0 {
		c.SysBot.CleanPresses = 10
	}
	if c.Gateway.OutboxSize <= 0 {
		c.Gateway.OutboxSize = 64
	}
	c.Webhook.URL = strings.TrimSpace(c.Webhook.URL)
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	if c.Webhook.URL != "" && strings.TrimSpace(c.Webhook.BotID) == "" {
		c.Webhook.BotID = "dropbot"
	}
}

func (c Config) Validate() error {
	if c.MaxDropCount < 1 {
		return fmt.Errorf("max_drop_count must be >= 1 (got %d)", c.MaxDropCount)
	}
	if c.InventoryOffset == 0 {
		return errors.New("inventory_offset is required")
	}
	if strings.TrimSpace(c.CatalogDir) == "" {
		return errors.New("catalog_dir is required")
	}
	if strings.TrimSpace(c.SysBot.Addr) == "" {
		return errors.New("sysbot.addr is required")
	}
	if c.SysBot.Timeout < 0 || c.SysBot.CleanDelay < 0 || c.InjectTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if strings.TrimSpace(c.Gateway.Listen) == "" {
		return errors.New("gateway.listen is required")
	}
	if c.Gateway.ReadLimit < 0 {
		return errors.New("gateway.read_limit must not be negative")
	}
	if c.Archive.Endpoint != "" && (c.Archive.Bucket == "" || c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "") {
		return errors.New("archive requires bucket, access_key_id and secret_access_key")
	}
	if c.Webhook.URL != "" && !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return fmt.Errorf("webhook.url must be http(s) (got %q)", c.Webhook.URL)
	}
	return nil
}

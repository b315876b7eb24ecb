package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/catalog"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/commands"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/config"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/offsets"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/protocol"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/sysbot"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/transport/observer"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/transport/ws"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to dropbot.yaml (optional; DROPBOT_* env vars override it)")
		listen       = flag.String("listen", "", "http listen address (overrides gateway.listen)")
		sysbotAddr   = flag.String("sysbot", "", "sys-botbase host:port (overrides sysbot.addr)")
		catalogDir   = flag.String("catalog", "", "catalog directory (overrides catalog_dir)")
		disableIndex = flag.Bool("disable_index", false, "disable the sqlite drop index")
		verify       = flag.Bool("verify", false, "read back every injected range")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[dropbot] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if s := strings.TrimSpace(*listen); s != "" {
		cfg.Gateway.Listen = s
	}
	if s := strings.TrimSpace(*sysbotAddr); s != "" {
		cfg.SysBot.Addr = s
	}
	if s := strings.TrimSpace(*catalogDir); s != "" {
		cfg.CatalogDir = s
	}
	if *disableIndex {
		cfg.DisableIndex = true
	}

	layout, err := offsets.Load(cfg.OffsetsPath)
	if err != nil {
		logger.Fatalf("load offsets: %v", err)
	}
	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog: %d recipes, languages=%v", cat.Recipes.Len(), cat.Languages())

	recs, err := openRecorders(cfg, logger)
	if err != nil {
		logger.Fatalf("open recorders: %v", err)
	}
	defer recs.Close()
	if recs.index != nil {
		if err := recs.index.UpsertCatalogs(cat.Digests); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	}

	bot := sysbot.New(sysbot.Config{
		Addr:         cfg.SysBot.Addr,
		Timeout:      cfg.SysBot.Timeout,
		CleanPresses: cfg.SysBot.CleanPresses,
		CleanDelay:   cfg.SysBot.CleanDelay,
		Verify:       *verify,
		Logger:       logger,
	})
	defer func() { _ = bot.Close() }()

	queue := drop.NewQueue()
	clean := drop.NewCleanFlag()
	inventory := uint32(cfg.InventoryOffset)
	loop, err := drop.NewLoop(drop.LoopConfig{
		Queue:         queue,
		Clean:         clean,
		Injector:      bot,
		Cleaner:       bot,
		Target:        layout.InventorySlot(inventory, 0),
		InjectTimeout: cfg.InjectTimeout,
		Recorders:     recs.List(),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("drop loop: %v", err)
	}

	svc, err := commands.New(commands.Config{
		MaxDropCount:    cfg.MaxDropCount,
		AllowClean:      cfg.AllowClean,
		DefaultLanguage: cfg.DefaultLanguage,
	}, cat, queue, clean, logger)
	if err != nil {
		logger.Fatalf("commands: %v", err)
	}

	gateway := ws.NewServer(svc, protocol.WelcomeMsg{
		MaxDropCount:    cfg.MaxDropCount,
		AllowClean:      cfg.AllowClean,
		DefaultLanguage: cfg.DefaultLanguage,
		Languages:       cat.Languages(),
		Catalogs:        cat.Digests,
	}, ws.Config{
		ReadLimit:  cfg.Gateway.ReadLimit,
		OutboxSize: cfg.Gateway.OutboxSize,
	}, logger)

	status := observer.NewServer(logger)
	status.Register("drops", func() any { return loop.Stats() })
	status.Register("gateway", func() any { return gateway.Stats() })

	a := &app{
		botID:         cfg.Webhook.BotID,
		adminLoopback: cfg.Gateway.AdminLoopback,
		layout:        layout,
		inventory:     inventory,
		loopStats:     loop.Stats,
		gatewayStats:  gateway.Stats,
		gateway:       gateway.Handler(),
		observer:      status,
	}
	if a.botID == "" {
		a.botID = "dropbot"
	}
	if recs.index != nil {
		a.indexStats = recs.index.Stats
		a.history = recs.index
		status.Register("index", func() any { return recs.index.Stats() })
	}
	if recs.archive != nil {
		a.archiveStats = recs.archive.Stats
		status.Register("archive", func() any { return recs.archive.Stats() })
	}
	if recs.webhook != nil {
		a.webhookStats = recs.webhook.Stats
		status.Register("webhook", func() any { return recs.webhook.Stats() })
	}

	srv := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		logger.Printf("listening on %s (sysbot %s)", cfg.Gateway.Listen, cfg.SysBot.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("exit: %v", err)
		recs.Close()
		os.Exit(1)
	}
	logger.Printf("stopped")
}

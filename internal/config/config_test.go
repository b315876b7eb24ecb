package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDropCount != 7 {
		t.Fatalf("max_drop_count=%d want=7", cfg.MaxDropCount)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("default_language=%q want=en", cfg.DefaultLanguage)
	}
	if cfg.JournalDir != filepath.Join("./data", "journal") {
		t.Fatalf("journal_dir=%q", cfg.JournalDir)
	}
	if cfg.IndexPath != filepath.Join("./data", "index", "drops.sqlite") {
		t.Fatalf("index_path=%q", cfg.IndexPath)
	}
	if cfg.SysBot.CleanDelay != 500*time.Millisecond {
		t.Fatalf("sysbot.clean_delay=%s want=500ms", cfg.SysBot.CleanDelay)
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dropbot.yaml")
	content := `max_drop_count: 20
allow_clean: false
default_language: DE
inventory_offset: 0xAC4723D0
inject_timeout: 3s
sysbot:
  addr: 10.0.0.2:6000
  clean_presses: 4
  clean_delay: 250ms
gateway:
  listen: 127.0.0.1:9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDropCount != 20 || cfg.AllowClean {
		t.Fatalf("max=%d allow_clean=%v", cfg.MaxDropCount, cfg.AllowClean)
	}
	if cfg.DefaultLanguage != "de" {
		t.Fatalf("default_language=%q want=de", cfg.DefaultLanguage)
	}
	if cfg.InventoryOffset != 0xAC4723D0 {
		t.Fatalf("inventory_offset=%X", uint32(cfg.InventoryOffset))
	}
	if cfg.InjectTimeout != 3*time.Second {
		t.Fatalf("inject_timeout=%s", cfg.InjectTimeout)
	}
	if cfg.SysBot.Addr != "10.0.0.2:6000" || cfg.SysBot.CleanPresses != 4 {
		t.Fatalf("sysbot=%+v", cfg.SysBot)
	}
	if cfg.SysBot.Timeout != 5*time.Second {
		t.Fatalf("sysbot.timeout=%s want default", cfg.SysBot.Timeout)
	}
	if cfg.SysBot.CleanDelay != 250*time.Millisecond {
		t.Fatalf("sysbot.clean_delay=%s want=250ms", cfg.SysBot.CleanDelay)
	}
	if cfg.Gateway.Listen != "127.0.0.1:9000" {
		t.Fatalf("listen=%q", cfg.Gateway.Listen)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dropbot.yaml")
	if err := os.WriteFile(path, []byte("max_drop_count: 20\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DROPBOT_MAX_DROP_COUNT", "3")
	t.Setenv("DROPBOT_INVENTORY_OFFSET", "0xAE5E8B28")
	t.Setenv("DROPBOT_SYSBOT_ADDR", "switch.lan:6000")
	t.Setenv("DROPBOT_ALLOW_CLEAN", "false")
	t.Setenv("DROPBOT_SYSBOT_CLEAN_DELAY", "1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDropCount != 3 {
		t.Fatalf("max_drop_count=%d want=3", cfg.MaxDropCount)
	}
	if cfg.SysBot.Addr != "switch.lan:6000" {
		t.Fatalf("sysbot.addr=%q", cfg.SysBot.Addr)
	}
	if cfg.AllowClean {
		t.Fatalf("allow_clean should be false")
	}
	if cfg.SysBot.CleanDelay != time.Second {
		t.Fatalf("sysbot.clean_delay=%s want=1s", cfg.SysBot.CleanDelay)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("DROPBOT_INVENTORY_OFFSET", "nope")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxDropCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for max_drop_count=0")
	}
	cfg = Default()
	cfg.SysBot.Addr = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty sysbot.addr")
	}
	cfg = Default()
	cfg.SysBot.CleanDelay = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative sysbot.clean_delay")
	}
	cfg = Default()
	cfg.InventoryOffset = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero inventory_offset")
	}
	cfg = Default()
	cfg.Webhook.URL = "ftp://example"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for non-http webhook url")
	}
	cfg = Default()
	cfg.Archive.Endpoint = "r2.example"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for archive without credentials")
	}
}

func TestNormalize_WebhookBotID(t *testing.T) {
	cfg := Default()
	cfg.Webhook.URL = " https://ingest.example/drops "
	cfg.Normalize()
	if cfg.Webhook.URL != "https://ingest.example/drops" || cfg.Webhook.BotID != "dropbot" {
		t.Fatalf("webhook=%+v", cfg.Webhook)
	}
}

func TestAddress_Text(t *testing.T) {
	var a Address
	if err := a.UnmarshalText([]byte("0xAE5E8B28")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := a.MarshalText()
	if string(b) != "0xAE5E8B28" {
		t.Fatalf("marshal=%q", b)
	}
	if err := a.UnmarshalText([]byte("0x1FFFFFFFF")); err == nil {
		t.Fatalf("expected overflow error")
	}
}

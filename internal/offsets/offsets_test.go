package offsets

import (
	"os"
	"path/filepath"
	"testing"
)

const testInventory = 0xAE5E8B28

func TestDefault_PlayerOffsets(t *testing.T) {
	l := Default()
	if got := l.PlayerStart(testInventory); got != 0xAE5B21D8 {
		t.Fatalf("player start=0x%X want=0xAE5B21D8", got)
	}
	if got := l.PlayerIDAddress(testInventory); got != 0xAE5BD180 {
		t.Fatalf("player id=0x%X want=0xAE5BD180", got)
	}
	if got := l.PlayerProfileMainAddress(testInventory); got != 0xAE5C3878 {
		t.Fatalf("profile=0x%X want=0xAE5C3878", got)
	}
	if got := l.ManpuAddress(testInventory); got != 0xAE5F3ADC {
		t.Fatalf("manpu=0x%X want=0xAE5F3ADC", got)
	}
	if got := l.InventorySlot(testInventory, 2); got != testInventory+16 {
		t.Fatalf("slot 2=0x%X want=0x%X", got, testInventory+16)
	}
}

func TestDefault_SaveOffsets(t *testing.T) {
	l := Default()
	if got := l.VillagerAddress(); got != 0xAB9F9CD0 {
		t.Fatalf("villager=0x%X want=0xAB9F9CD0", got)
	}
	if got := l.VillagerHouseAddress(); got != 0xABE112F4 {
		t.Fatalf("villager house=0x%X want=0xABE112F4", got)
	}
	if got := l.VillagerOffset(3); got != 0xABA31CE0 {
		t.Fatalf("villager[3]=0x%X want=0xABA31CE0", got)
	}
	if got := l.VillagerHouseOffset(2); got != 0xABE36854 {
		t.Fatalf("house[2]=0x%X want=0xABE36854", got)
	}
	if got := l.FieldItemStart(); got != 0xABC048C8 {
		t.Fatalf("field items=0x%X want=0xABC048C8", got)
	}
	if l.VillagerOffset(0) != l.VillagerAddress() {
		t.Fatalf("slot 0 must equal the villager base")
	}
}

func TestLayout_VersionBumpOnlyMovesAnchors(t *testing.T) {
	a := Default()
	b := Default()
	b.TurnipAddress += 0x1000
	for i := 0; i < a.MaxVillagers; i++ {
		if b.VillagerOffset(i)-a.VillagerOffset(i) != 0x1000 {
			t.Fatalf("slot %d did not move with the anchor", i)
		}
	}
	if b.FieldItemStart()-a.FieldItemStart() != 0x1000 {
		t.Fatalf("field item start did not move with the anchor")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "offsets.yaml")
	raw := "version: test\nturnip_address: 0x10000000\nvillager_size: 0x100\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Version != "test" || l.TurnipAddress != 0x10000000 || l.VillagerSize != 0x100 {
		t.Fatalf("override not applied: %+v", l)
	}
	if l.DodoAddress != Default().DodoAddress {
		t.Fatalf("unset fields should keep defaults")
	}
	if got, want := l.VillagerOffset(1)-l.VillagerOffset(0), uint32(0x100); got != want {
		t.Fatalf("stride=0x%X want=0x%X", got, want)
	}
}

func TestLoad_RejectsZeroSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "offsets.yaml")
	if err := os.WriteFile(p, []byte("villager_size: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l != Default() {
		t.Fatalf("expected defaults")
	}
}

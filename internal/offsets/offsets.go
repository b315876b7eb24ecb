// Package offsets holds the memory layout of the running game: a small table of
// anchor addresses and record sizes plus the pure functions deriving every other
// address from them. A game update only ever touches the table.
package offsets

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout is the versioned constants table. All fields are either absolute
// addresses, signed adjustments applied to an anchor, or record strides.
type Layout struct {
	Version string `yaml:"version"`

	// Player records, relative to the externally observed inventory offset.
	PlayerSize              uint32 `yaml:"player_size"`
	PlayerOtherStartPadding uint32 `yaml:"player_other_start_padding"`
	InventoryHeader         uint32 `yaml:"inventory_header"`
	PlayerStartAdjust       uint32 `yaml:"player_start_adjust"`
	PlayerIDOffset          uint32 `yaml:"player_id_offset"`
	PlayerProfileMainOffset uint32 `yaml:"player_profile_main_offset"`
	ManpuOffset             uint32 `yaml:"manpu_offset"`
	ItemSize                uint32 `yaml:"item_size"`

	// Main save, relative to the turnip anchor.
	TurnipAddress       uint32 `yaml:"turnip_address"`
	SaveDelta           int64  `yaml:"save_delta"`
	VillagerAdjust      int64  `yaml:"villager_adjust"`
	VillagerHouseAdjust int64  `yaml:"villager_house_adjust"`
	VillagerSize        uint32 `yaml:"villager_size"`
	VillagerHouseSize   uint32 `yaml:"villager_house_size"`
	MaxVillagers        int    `yaml:"max_villagers"`
	FieldItemAdjust     int64  `yaml:"field_item_adjust"`

	// Standalone addresses.
	ArriverNameLocAddress uint32 `yaml:"arriver_name_loc_address"`
	TextSpeedAddress      uint32 `yaml:"text_speed_address"`
	DodoAddress           uint32 `yaml:"dodo_address"`
	OnlineSessionAddress  uint32 `yaml:"online_session_address"`
}

// Default returns the table for the latest supported patch revision.
func Default() Layout {
	return Layout{
		Version: "1.x-latest",

		PlayerSize:              0x10E3A8,
		PlayerOtherStartPadding: 0x36A50,
		InventoryHeader:         0x10,
		PlayerStartAdjust:       0x110,
		PlayerIDOffset:          0xAFA8,
		PlayerProfileMainOffset: 0x116A0,
		ManpuOffset:             0xAF7C + 72,
		ItemSize:                8,

		TurnipAddress:       0xABE151EC,
		SaveDelta:           -0x2cb0 - 0x41887c,
		VillagerAdjust:      0x10,
		VillagerHouseAdjust: 0x417634,
		VillagerSize:        0x12AB0,
		VillagerHouseSize:   0x12AB0,
		MaxVillagers:        10,
		FieldItemAdjust:     -0x10 + 0x20ac08,

		ArriverNameLocAddress: 0xB66F4EE0,
		TextSpeedAddress:      0xBA21BB8,
		DodoAddress:           0xA97E15C,
		OnlineSessionAddress:  0x91FD740,
	}
}

// Load reads a YAML override on top of Default. An empty path yields the defaults.
func Load(path string) (Layout, error) {
	l := Default()
	if strings.TrimSpace(path) == "" {
		return l, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("offsets.yaml: %w", err)
	}
	if err := l.Validate(); err != nil {
		return l, fmt.Errorf("offsets.yaml: %w", err)
	}
	return l, nil
}

func (l Layout) Validate() error {
	switch {
	case l.TurnipAddress == 0:
		return fmt.Errorf("turnip_address must be set")
	case l.VillagerSize == 0:
		return fmt.Errorf("villager_size must be > 0")
	case l.VillagerHouseSize == 0:
		return fmt.Errorf("villager_house_size must be > 0")
	case l.PlayerSize == 0:
		return fmt.Errorf("player_size must be > 0")
	case l.ItemSize == 0:
		return fmt.Errorf("item_size must be > 0")
	case l.MaxVillagers <= 0:
		return fmt.Errorf("max_villagers must be > 0")
	}
	return nil
}

func shift(base uint32, delta int64) uint32 { return uint32(int64(base) + delta) }

// PlayerStart is the start of the main player record for the given inventory offset.
func (l Layout) PlayerStart(inventory uint32) uint32 {
	return inventory - l.InventoryHeader - l.PlayerOtherStartPadding + l.PlayerStartAdjust
}

func (l Layout) PlayerIDAddress(inventory uint32) uint32 {
	return l.PlayerStart(inventory) + l.PlayerIDOffset
}

func (l Layout) PlayerProfileMainAddress(inventory uint32) uint32 {
	return l.PlayerStart(inventory) + l.PlayerProfileMainOffset
}

// ManpuAddress is the reaction (emote) table of the main player.
func (l Layout) ManpuAddress(inventory uint32) uint32 {
	return inventory - l.InventoryHeader + l.ManpuOffset
}

// InventorySlot is the item record of pocket slot index. Drops are written
// starting at slot 0.
func (l Layout) InventorySlot(inventory uint32, index int) uint32 {
	return inventory + uint32(index)*l.ItemSize
}

func (l Layout) VillagerAddress() uint32 {
	return shift(shift(l.TurnipAddress, l.SaveDelta), l.VillagerAdjust)
}

func (l Layout) VillagerHouseAddress() uint32 {
	return shift(shift(l.TurnipAddress, l.SaveDelta), l.VillagerHouseAdjust)
}

// VillagerOffset returns the record of villager slot index. The caller keeps
// index within [0, MaxVillagers).
func (l Layout) VillagerOffset(index int) uint32 {
	return l.VillagerAddress() + uint32(index)*l.VillagerSize
}

// VillagerHouseOffset returns the house record of villager slot index. The
// caller keeps index within [0, MaxVillagers).
func (l Layout) VillagerHouseOffset(index int) uint32 {
	return l.VillagerHouseAddress() + uint32(index)*l.VillagerHouseSize
}

func (l Layout) FieldItemStart() uint32 {
	return shift(l.VillagerAddress(), l.FieldItemAdjust)
}

func (l Layout) ArriverNameLoc() uint32 { return l.ArriverNameLocAddress }
func (l Layout) TextSpeed() uint32      { return l.TextSpeedAddress }
func (l Layout) Dodo() uint32           { return l.DodoAddress }
func (l Layout) OnlineSession() uint32  { return l.OnlineSessionAddress }

// Table lists every derived address for the given inventory offset, in a
// stable order. Used by the admin endpoint and the startup log.
func (l Layout) Table(inventory uint32) []Entry {
	out := []Entry{
		{Name: "player_start", Addr: l.PlayerStart(inventory)},
		{Name: "player_id", Addr: l.PlayerIDAddress(inventory)},
		{Name: "player_profile_main", Addr: l.PlayerProfileMainAddress(inventory)},
		{Name: "manpu", Addr: l.ManpuAddress(inventory)},
		{Name: "villager", Addr: l.VillagerAddress()},
		{Name: "villager_house", Addr: l.VillagerHouseAddress()},
		{Name: "field_item_start", Addr: l.FieldItemStart()},
		{Name: "arriver_name_loc", Addr: l.ArriverNameLoc()},
		{Name: "text_speed", Addr: l.TextSpeed()},
		{Name: "dodo", Addr: l.Dodo()},
		{Name: "online_session", Addr: l.OnlineSession()},
	}
	return out
}

type Entry struct {
	Name string `json:"name"`
	Addr uint32 `json:"addr"`
}

func (e Entry) String() string { return fmt.Sprintf("%s=0x%08X", e.Name, e.Addr) }

// Package items converts user input into binary item records and back.
package items

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// None marks an absent or invalid item slot.
	None uint16 = 0xFFFE
	// DIYRecipe is the item that carries a recipe id in its count word.
	DIYRecipe uint16 = 0x16A2

	// RecordSize is the size of one encoded item in game memory.
	RecordSize = 8
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrItemNotFound         = fmt.Errorf("%w: item not found", ErrInvalidInput)
	ErrInvalidCustomization = errors.New("invalid customization")
	ErrInvalidPage          = fmt.Errorf("%w: invalid page", ErrInvalidInput)
	ErrNotStackable         = fmt.Errorf("%w: item cannot stack", ErrInvalidInput)
)

// Item is one inventory record. Count stores the real count minus one; a zero
// count on a stackable item is rewritten to a full stack at batch build time.
type Item struct {
	ID              uint16 `json:"id"`
	Count           uint16 `json:"count"`
	Body            uint8  `json:"body,omitempty"`
	Fabric          uint8  `json:"fabric,omitempty"`
	SystemParam     uint8  `json:"system_param,omitempty"`
	AdditionalParam uint8  `json:"additional_param,omitempty"`
	UseCount        uint16 `json:"use_count,omitempty"`
}

func New(id uint16) Item { return Item{ID: id} }

func (it Item) IsNone() bool { return it.ID == None }

func (it Item) Customized() bool { return it.Body != 0 || it.Fabric != 0 }

// CountWord is the 16-bit word stored after the id/flags. Customized items
// keep their variant there instead of a count.
func (it Item) CountWord() uint16 {
	if it.Customized() {
		return PackCustomization(it.Body, it.Fabric)
	}
	return it.Count
}

// Put writes the record into b, which must hold RecordSize bytes.
func (it Item) Put(b []byte) {
	_ = b[RecordSize-1]
	binary.LittleEndian.PutUint16(b[0:], it.ID)
	b[2] = it.SystemParam
	b[3] = it.AdditionalParam
	binary.LittleEndian.PutUint16(b[4:], it.CountWord())
	binary.LittleEndian.PutUint16(b[6:], it.UseCount)
}

// Value is the record as a little-endian 64-bit word.
func (it Item) Value() uint64 {
	var b [RecordSize]byte
	it.Put(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Hex is the 16-digit code users paste back into the hex drop form.
func (it Item) Hex() string { return fmt.Sprintf("%016X", it.Value()) }

// Encode serializes items back to back in memory order.
func Encode(list []Item) []byte {
	out := make([]byte, len(list)*RecordSize)
	for i, it := range list {
		it.Put(out[i*RecordSize:])
	}
	return out
}

// Decode is the inverse of Encode. Count words are returned as counts; the
// caller decides whether a word is a customization.
func Decode(b []byte) ([]Item, error) {
	if len(b)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidInput, len(b), RecordSize)
	}
	out := make([]Item, 0, len(b)/RecordSize)
	for i := 0; i < len(b); i += RecordSize {
		out = append(out, Item{
			ID:              binary.LittleEndian.Uint16(b[i:]),
			SystemParam:     b[i+2],
			AdditionalParam: b[i+3],
			Count:           binary.LittleEndian.Uint16(b[i+4:]),
			UseCount:        binary.LittleEndian.Uint16(b[i+6:]),
		})
	}
	return out, nil
}

// ParseID parses a hexadecimal item id, with or without a 0x prefix.
// Anything unparsable yields None.
func ParseID(text string) uint16 {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return None
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return None
	}
	return uint16(v)
}

// ParseHexList parses whitespace separated hex ids into records with count 0.
func ParseHexList(input string) ([]Item, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no item ids", ErrInvalidInput)
	}
	out := make([]Item, 0, len(fields))
	for _, f := range fields {
		id := ParseID(f)
		if id == None {
			return nil, fmt.Errorf("%w: bad item id %q", ErrInvalidInput, f)
		}
		out = append(out, New(id))
	}
	return out, nil
}

package items

import (
	"fmt"
	"strings"
)

const (
	maxFabric   = 7
	bodyMask    = 0x7
	fabricShift = 5
)

// Remake is the customization metadata of one item.
type Remake struct {
	BodyCount   int      `json:"body_count"`
	FabricCount int      `json:"fabric_count"`
	BodyNames   []string `json:"body_names,omitempty"`
	FabricNames []string `json:"fabric_names,omitempty"`
}

// Remakes maps item ids to their customization metadata.
type Remakes map[uint16]Remake

// PackCustomization combines body and fabric into the customization sum.
func PackCustomization(body, fabric uint8) uint16 {
	return uint16(fabric)<<fabricShift | uint16(body)
}

// UnpackCustomization splits a customization sum. Sums with garbage in the
// unused bits or a fabric above 7 are rejected.
func UnpackCustomization(sum int) (body, fabric uint8, err error) {
	if sum < 0 {
		return 0, 0, fmt.Errorf("%w: negative sum %d", ErrInvalidCustomization, sum)
	}
	b := sum & bodyMask
	f := sum >> fabricShift
	if f > maxFabric || (f<<fabricShift|b) != sum {
		return 0, 0, fmt.Errorf("%w: sum %d does not pack", ErrInvalidCustomization, sum)
	}
	return uint8(b), uint8(f), nil
}

// Allows reports whether body and fabric are inside the item's bounds. Zero
// is the default variant and always allowed.
func (r Remake) Allows(body, fabric uint8) bool {
	okBody := body == 0 || int(body) <= r.BodyCount
	okFabric := fabric == 0 || int(fabric) <= r.FabricCount
	return okBody && okFabric
}

// Customize builds a record for id with the variant encoded in sum.
func Customize(id uint16, sum int, remakes Remakes) (Item, error) {
	if id == None {
		return Item{}, fmt.Errorf("%w: no item", ErrInvalidInput)
	}
	if sum <= 0 {
		return Item{}, fmt.Errorf("%w: no customization data specified", ErrInvalidCustomization)
	}
	body, fabric, err := UnpackCustomization(sum)
	if err != nil {
		return Item{}, err
	}
	r, ok := remakes[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: item %04X has no customization data", ErrInvalidCustomization, id)
	}
	if !r.Allows(body, fabric) {
		return Item{}, fmt.Errorf("%w: body=%d fabric=%d out of range for %04X", ErrInvalidCustomization, body, fabric, id)
	}
	return Item{ID: id, Body: body, Fabric: fabric}, nil
}

// CustomizeParts is the two-value command form; the values are summed.
func CustomizeParts(id uint16, a, b int, remakes Remakes) (Item, error) {
	return Customize(id, a+b, remakes)
}

// Describe lists the customization options of id, or "" when it has none.
func Describe(id uint16, remakes Remakes) string {
	r, ok := remakes[id]
	if !ok {
		return ""
	}
	var sb strings.Builder
	if r.BodyCount > 0 {
		sb.WriteString("Body:\n")
		for i := 0; i <= r.BodyCount; i++ {
			fmt.Fprintf(&sb, "%d=%s\n", i, optionName(r.BodyNames, i))
		}
	}
	if r.FabricCount > 0 {
		sb.WriteString("Fabric:\n")
		for i := 0; i <= r.FabricCount; i++ {
			fmt.Fprintf(&sb, "%d=%s\n", PackCustomization(0, uint8(i)), optionName(r.FabricNames, i))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func optionName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("Variant %d", i)
}

// Package recipes maps DIY recipe ids to the items they craft and back.
package recipes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
)

var (
	ErrDuplicateItem = errors.New("duplicate recipe item")
	ErrNoRecipe      = fmt.Errorf("%w: item has no DIY recipe", items.ErrInvalidInput)
)

// Table is the recipe lookup in both directions. It is immutable once built.
type Table struct {
	forward map[uint16]uint16
	reverse map[uint16]uint16
}

// New builds both directions from the forward (recipe -> item) table. Two
// recipes producing the same item is a data fault.
func New(forward map[uint16]uint16) (*Table, error) {
	t := &Table{
		forward: make(map[uint16]uint16, len(forward)),
		reverse: make(map[uint16]uint16, len(forward)),
	}
	ids := make([]int, 0, len(forward))
	for r := range forward {
		ids = append(ids, int(r))
	}
	sort.Ints(ids)
	for _, r := range ids {
		recipe := uint16(r)
		item := forward[recipe]
		if prev, ok := t.reverse[item]; ok {
			return nil, fmt.Errorf("%w: item %04X from recipes %X and %X", ErrDuplicateItem, item, prev, recipe)
		}
		t.forward[recipe] = item
		t.reverse[item] = recipe
	}
	return t, nil
}

// Item returns the item crafted by recipe.
func (t *Table) Item(recipe uint16) (uint16, bool) {
	if t == nil {
		return items.None, false
	}
	v, ok := t.forward[recipe]
	return v, ok
}

// Recipe returns the recipe that crafts item.
func (t *Table) Recipe(item uint16) (uint16, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.reverse[item]
	return v, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.forward)
}

// DIYItem is the droppable recipe card for recipe.
func DIYItem(recipe uint16) items.Item {
	return items.Item{ID: items.DIYRecipe, Count: recipe}
}

// Suffix is the DIY annotation appended to lookup lines, or "" when item has
// no recipe.
func (t *Table) Suffix(item uint16) string {
	r, ok := t.Recipe(item)
	if !ok {
		return ""
	}
	return fmt.Sprintf("DIY: %X%08X", r, uint32(items.DIYRecipe))
}

// ParseUserInput builds recipe cards from hex recipe ids or from item names
// that have a recipe.
func (t *Table) ParseUserInput(input, defaultLang string, langs items.Languages) ([]items.Item, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty request", items.ErrInvalidInput)
	}
	if ids, err := parseHexRecipes(input); err == nil {
		out := make([]items.Item, len(ids))
		for i, r := range ids {
			out[i] = DIYItem(r)
		}
		return out, nil
	}
	ids, err := items.ResolveNames(input, defaultLang, langs)
	if err != nil {
		return nil, err
	}
	out := make([]items.Item, 0, len(ids))
	for _, id := range ids {
		r, ok := t.Recipe(id)
		if !ok {
			return nil, fmt.Errorf("%w: %04X", ErrNoRecipe, id)
		}
		out = append(out, DIYItem(r))
	}
	return out, nil
}

func parseHexRecipes(input string) ([]uint16, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no recipe ids", items.ErrInvalidInput)
	}
	out := make([]uint16, 0, len(fields))
	for _, f := range fields {
		id := items.ParseID(f)
		if id == items.None {
			return nil, fmt.Errorf("%w: bad recipe id %q", items.ErrInvalidInput, f)
		}
		out = append(out, id)
	}
	return out, nil
}

package items

import "fmt"

// Stacks maps item ids to their maximum stack size.
type Stacks map[uint16]uint16

func (s Stacks) MaxStack(id uint16) (uint16, bool) {
	v, ok := s[id]
	return v, ok
}

// ResolveStack rewrites an unset count on a stackable item to a full stack.
func ResolveStack(it Item, stacks Stacks) Item {
	if it.Count != 0 {
		return it
	}
	limit, ok := stacks.MaxStack(it.ID)
	if ok && limit > 1 {
		it.Count = limit - 1
	}
	return it
}

// FillStacks applies ResolveStack to a copy of list.
func FillStacks(list []Item, stacks Stacks) []Item {
	out := make([]Item, len(list))
	for i, it := range list {
		out[i] = ResolveStack(it, stacks)
	}
	return out
}

// StackMax returns id stacked to its maximum.
func StackMax(id uint16, stacks Stacks) (Item, uint16, error) {
	if id == None {
		return Item{}, 0, fmt.Errorf("%w: no item", ErrInvalidInput)
	}
	limit, ok := stacks.MaxStack(id)
	if !ok || limit == 0 {
		return Item{}, 0, fmt.Errorf("%w: %04X", ErrNotStackable, id)
	}
	return Item{ID: id, Count: limit - 1}, limit, nil
}

// Stack returns id with an explicit real count between 1 and 99.
func Stack(id uint16, count int) (Item, error) {
	if id == None || count < 1 || count > 99 {
		return Item{}, fmt.Errorf("%w: item %04X count %d", ErrInvalidInput, id, count)
	}
	return Item{ID: id, Count: uint16(count - 1)}, nil
}

package items

import (
	"errors"
	"testing"
)

func TestFillStacks(t *testing.T) {
	stacks := Stacks{0x0010: 10, 0x0020: 1}
	in := []Item{
		{ID: 0x0010},
		{ID: 0x0010, Count: 3},
		{ID: 0x0020},
		{ID: 0x0030},
	}
	out := FillStacks(in, stacks)
	want := []uint16{9, 3, 0, 0}
	for i, it := range out {
		if it.Count != want[i] {
			t.Fatalf("item %d count=%d want=%d", i, it.Count, want[i])
		}
	}
	if in[0].Count != 0 {
		t.Fatalf("input slice must not be modified")
	}
}

func TestStackMax(t *testing.T) {
	it, limit, err := StackMax(0x0010, Stacks{0x0010: 30})
	if err != nil || limit != 30 || it.Count != 29 {
		t.Fatalf("it=%+v limit=%d err=%v", it, limit, err)
	}
	if _, _, err := StackMax(0x0011, Stacks{}); !errors.Is(err, ErrNotStackable) {
		t.Fatalf("err=%v want ErrNotStackable", err)
	}
}

func TestStack_CountBounds(t *testing.T) {
	it, err := Stack(0x0010, 1)
	if err != nil || it.Count != 0 {
		t.Fatalf("it=%+v err=%v", it, err)
	}
	for _, c := range []int{0, 100} {
		if _, err := Stack(0x0010, c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("count=%d err=%v want ErrInvalidInput", c, err)
		}
	}
}

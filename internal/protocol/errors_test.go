package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/recipes"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrInvalidInput,
		ErrInvalidCustomization,
		ErrBatchTruncated,
		ErrInjectionFailure,
		ErrQueueShutdown,
		ErrCleanDisabled,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("lookup: %w", items.ErrItemNotFound), ErrInvalidInput},
		{recipes.ErrNoRecipe, ErrInvalidInput},
		{drop.ErrEmptyRequest, ErrInvalidInput},
		{fmt.Errorf("%w: fabric 9", items.ErrInvalidCustomization), ErrInvalidCustomization},
		{drop.ErrQueueClosed, ErrQueueShutdown},
		{drop.ErrShutdown, ErrQueueShutdown},
		{fmt.Errorf("%w: timeout", drop.ErrInjection), ErrInjectionFailure},
		{drop.ErrCleanDisabled, ErrCleanDisabled},
		{errors.New("boom"), ErrInternal},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.err); got != tc.want {
			t.Fatalf("CodeFor(%v)=%q want=%q", tc.err, got, tc.want)
		}
		if !IsKnownCode(CodeFor(tc.err)) {
			t.Fatalf("CodeFor(%v) returned unknown code", tc.err)
		}
	}
}

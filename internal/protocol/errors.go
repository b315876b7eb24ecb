package protocol

import (
	"errors"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request parsing.
	ErrInvalidInput         = "E_INVALID_INPUT"
	ErrInvalidCustomization = "E_INVALID_CUSTOMIZATION"
	ErrBatchTruncated       = "E_BATCH_TRUNCATED"

	// Queue/injection.
	ErrInjectionFailure = "E_INJECTION_FAILURE"
	ErrQueueShutdown    = "E_QUEUE_SHUTDOWN"
	ErrCleanDisabled    = "E_CLEAN_DISABLED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:      {},
	ErrInvalidInput:         {},
	ErrInvalidCustomization: {},
	ErrBatchTruncated:       {},
	ErrInjectionFailure:     {},
	ErrQueueShutdown:        {},
	ErrCleanDisabled:        {},
	ErrInternal:             {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an error from the item, recipe or drop packages onto the code
// sent to clients. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, items.ErrInvalidCustomization):
		return ErrInvalidCustomization
	case errors.Is(err, items.ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, drop.ErrQueueClosed), errors.Is(err, drop.ErrShutdown):
		return ErrQueueShutdown
	case errors.Is(err, drop.ErrInjection):
		return ErrInjectionFailure
	case errors.Is(err, drop.ErrCleanDisabled):
		return ErrCleanDisabled
	default:
		return ErrInternal
	}
}

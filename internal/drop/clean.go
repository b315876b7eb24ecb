package drop

import (
	"errors"
	"sync/atomic"
)

// ErrCleanDisabled is returned when cleaning is turned off in config.
var ErrCleanDisabled = errors.New("clean is disabled")

// CleanFlag is the process-wide "clean requested" flag. Setting it twice
// before it is serviced is the same as setting it once.
type CleanFlag struct {
	set    atomic.Bool
	signal chan struct{}
}

func NewCleanFlag() *CleanFlag {
	return &CleanFlag{signal: make(chan struct{}, 1)}
}

// Request raises the flag.
func (f *CleanFlag) Request() {
	f.set.Store(true)
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Take clears the flag and reports whether it was raised.
func (f *CleanFlag) Take() bool { return f.set.CompareAndSwap(true, false) }

func (f *CleanFlag) Pending() bool { return f.set.Load() }

// Signal wakes an idle consumer after Request.
func (f *CleanFlag) Signal() <-chan struct{} { return f.signal }

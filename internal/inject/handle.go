package inject

import (
	"runtime"
	"sync"
)

// patchSite is one strategy's view of a single injection: write the
// replacement, write the original back, release any backing resources.
// Implementations keep the saved original immutable across repeated
// applies.
type patchSite interface {
	apply() error
	undo() error
	release()
}

type handleState int

const (
	stateUninitialized handleState = iota
	stateApplied
	stateUndone
	stateDisposed
)

// Handle represents one active method swap. Apply and Undo are
// idempotent; Dispose restores the original and is terminal.
type Handle struct {
	mu    sync.Mutex
	site  patchSite
	state handleState
}

func newHandle(site patchSite, strategy Strategy) *Handle {
	h := &Handle{site: site}
	if strategy == StrategyBytecode {
		// Safety net: an unrestored raw pointer outliving a collected
		// handle would leave the slot dangling. Dispose removes it.
		runtime.SetFinalizer(h, (*Handle).finalize)
	}
	return h
}

// Apply installs the replacement. Repeated applies re-apply; the saved
// original pointer is never clobbered.
func (h *Handle) Apply() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateDisposed {
		return ErrDisposed
	}
	if err := h.site.apply(); err != nil {
		return err
	}
	h.state = stateApplied
	return nil
}

// Undo restores the original implementation. Repeated undos re-restore.
func (h *Handle) Undo() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateDisposed {
		return ErrDisposed
	}
	if err := h.site.undo(); err != nil {
		return err
	}
	h.state = stateUndone
	return nil
}

// Dispose restores the original, releases backing resources, and
// retires the handle. Safe to call more than once.
func (h *Handle) Dispose() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateDisposed {
		return nil
	}
	runtime.SetFinalizer(h, nil)
	err := h.site.undo()
	h.site.release()
	h.state = stateDisposed
	return err
}

func (h *Handle) finalize() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateApplied {
		_ = h.site.undo()
	}
}

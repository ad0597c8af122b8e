// Package inject swaps live method implementations. Two strategies
// exist: overwriting the pointer slot the runtime dispatches through
// (bytecode), and rewriting the method's native precode (native). The
// strategy is probed once per environment and every injection goes
// through it.
//
// Patching is not transactionally safe against calls already executing
// the target on another thread. That race is inherent to live patching
// and is accepted, not mitigated; fixing it would need a
// stop-the-world.
package inject

import (
	"errors"
	"fmt"
	"sync"

	"rekindle/internal/metadata"
)

var (
	// ErrUnsupported is returned when neither strategy can run in this
	// environment. Callers should check Strategy() first if they want
	// to avoid the error.
	ErrUnsupported = errors.New("inject: no usable injection strategy in this environment")

	// ErrLayoutMismatch means a pointer slot did not hold the expected
	// value. The runtime's internal layout no longer matches the
	// hard-coded offsets; this is fatal and must not be swallowed.
	ErrLayoutMismatch = errors.New("inject: runtime layout mismatch at patch address")

	// ErrDisposed is returned by operations on a disposed handle.
	ErrDisposed = errors.New("inject: handle disposed")

	// ErrPatchSite means the native patch region could not be safely
	// stolen (an instruction in it references memory relative to its
	// own position outside the region).
	ErrPatchSite = errors.New("inject: unpatchable instruction in target prologue")
)

// Replacement builds the replacement implementation. orig is a callable
// delegate bound to the original body, so the replacement can still
// fall through to it.
type Replacement func(orig metadata.Impl) metadata.Impl

// Strategy identifies how injections are performed.
type Strategy int

const (
	StrategyUnsupported Strategy = iota
	StrategyBytecode
	StrategyNative
)

func (s Strategy) String() string {
	switch s {
	case StrategyBytecode:
		return "bytecode"
	case StrategyNative:
		return "native"
	default:
		return "unsupported"
	}
}

// Env is the per-process injection environment. The strategy is probed
// lazily, once: native hooking wherever the platform supports it, the
// bytecode strategy only while the runtime's prepared entry pointers
// are stable, otherwise unsupported.
type Env struct {
	rt *metadata.Runtime

	// NativeProbe overrides platform detection. Must be set before the
	// first Strategy or Inject call; tests use it to force a strategy.
	NativeProbe func() bool

	once     sync.Once
	strategy Strategy
}

func NewEnv(rt *metadata.Runtime) *Env {
	return &Env{rt: rt}
}

// Strategy returns the detected injection strategy, probing on first use.
func (e *Env) Strategy() Strategy {
	e.once.Do(func() {
		probe := e.NativeProbe
		if probe == nil {
			probe = func() bool { return nativeSupported }
		}
		switch {
		case probe():
			e.strategy = StrategyNative
		case e.rt != nil && e.rt.StableEntries():
			e.strategy = StrategyBytecode
		default:
			e.strategy = StrategyUnsupported
		}
	})
	return e.strategy
}

// Inject swaps target's implementation for the one built by repl and
// applies it immediately. The returned handle restores the original on
// Undo or Dispose. Injecting twice into one target without disposing
// the first handle is undefined behavior.
func (e *Env) Inject(target *metadata.MethodDef, repl Replacement) (*Handle, error) {
	if target == nil || repl == nil {
		return nil, errors.New("inject: nil target or replacement")
	}

	var (
		site patchSite
		err  error
	)
	switch e.Strategy() {
	case StrategyBytecode:
		site, err = newBytecodePatch(target, repl)
	case StrategyNative:
		site, err = newNativePatch(target, repl)
	default:
		// Fail fast before preparing or touching any method memory.
		return nil, fmt.Errorf("%w (target %s)", ErrUnsupported, target.FullName())
	}
	if err != nil {
		return nil, err
	}

	h := newHandle(site, e.Strategy())
	if err := h.Apply(); err != nil {
		return nil, err
	}
	return h, nil
}

package inject

import (
	"errors"
	"testing"
	"unsafe"

	"rekindle/internal/metadata"
)

func stableRuntime() metadata.Runtime {
	return metadata.Runtime{Version: metadata.Version{Major: 6, Minor: 0}}
}

func tieredRuntime() metadata.Runtime {
	return metadata.Runtime{
		Version:        metadata.Version{Major: 8, Minor: 0},
		TieringEnabled: true,
		DebugProbe:     func() bool { return false },
	}
}

// bytecodeEnv forces the bytecode strategy regardless of host platform.
func bytecodeEnv(rt *metadata.Runtime) *Env {
	e := NewEnv(rt)
	e.NativeProbe = func() bool { return false }
	return e
}

func newTarget(t *testing.T, rt metadata.Runtime) *metadata.MethodDef {
	t.Helper()
	d := metadata.NewDomain(rt)
	typ := d.NewAssembly("App").NewType("App", "Target", nil)
	return typ.NewMethod(metadata.MethodSpec{
		Name:   "Render",
		Static: true,
		Params: []metadata.ParamDef{{Name: "name", Type: metadata.TypeString}},
		Return: metadata.TypeString,
		Impl: func(_ any, args []any) any {
			return "original:" + args[0].(string)
		},
	})
}

func TestStrategyProbe(t *testing.T) {
	stable := stableRuntime()
	tiered := tieredRuntime()
	tests := []struct {
		name   string
		native bool
		rt     *metadata.Runtime
		want   Strategy
	}{
		{"native available", true, &tiered, StrategyNative},
		{"bytecode on stable entries", false, &stable, StrategyBytecode},
		{"nothing left", false, &tiered, StrategyUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnv(tt.rt)
			e.NativeProbe = func() bool { return tt.native }
			if got := e.Strategy(); got != tt.want {
				t.Errorf("Strategy() = %v, want %v", got, tt.want)
			}
			// Probed once; the answer must stick.
			e.NativeProbe = func() bool { return !tt.native }
			if got := e.Strategy(); got != tt.want {
				t.Errorf("second Strategy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjectRedirectsAndRestores(t *testing.T) {
	rt := stableRuntime()
	target := newTarget(t, rt)
	env := bytecodeEnv(&rt)

	h, err := env.Inject(target, func(orig metadata.Impl) metadata.Impl {
		return func(recv any, args []any) any {
			return "patched:" + orig(recv, args).(string)
		}
	})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}

	got, err := target.Invoke(nil, "x")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "patched:original:x" {
		t.Fatalf("patched Invoke = %v", got)
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "original:x" {
		t.Fatalf("after Undo Invoke = %v", got)
	}

	if err := h.Apply(); err != nil {
		t.Fatalf("re-Apply: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "patched:original:x" {
		t.Fatalf("after re-Apply Invoke = %v", got)
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}

func TestDoubleApplyKeepsOriginal(t *testing.T) {
	rt := stableRuntime()
	target := newTarget(t, rt)
	env := bytecodeEnv(&rt)

	h, err := env.Inject(target, func(metadata.Impl) metadata.Impl {
		return func(_ any, _ []any) any { return "patched" }
	})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if err := h.Apply(); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if err := h.Apply(); err != nil {
		t.Fatalf("third Apply: %v", err)
	}
	if err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "original:x" {
		t.Fatalf("original not restored after repeated applies, got %v", got)
	}
}

func TestDisposeIsTerminal(t *testing.T) {
	rt := stableRuntime()
	target := newTarget(t, rt)
	env := bytecodeEnv(&rt)

	h, err := env.Inject(target, func(metadata.Impl) metadata.Impl {
		return func(_ any, _ []any) any { return "patched" }
	})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "original:x" {
		t.Fatalf("after Dispose Invoke = %v", got)
	}
	if err := h.Apply(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Apply after Dispose err = %v, want ErrDisposed", err)
	}
	if err := h.Undo(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Undo after Dispose err = %v, want ErrDisposed", err)
	}
	if err := h.Dispose(); err != nil {
		t.Errorf("second Dispose err = %v", err)
	}
}

// The replacement may reenter the original mid-call; disposal afterward
// must still leave the untouched original behind.
func TestReentrantOriginalThenDispose(t *testing.T) {
	rt := stableRuntime()
	target := newTarget(t, rt)
	env := bytecodeEnv(&rt)

	var reentrant string
	h, err := env.Inject(target, func(orig metadata.Impl) metadata.Impl {
		return func(recv any, args []any) any {
			reentrant = orig(recv, []any{"inner"}).(string)
			return "outer"
		}
	})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "outer" {
		t.Fatalf("Invoke = %v", got)
	}
	if reentrant != "original:inner" {
		t.Fatalf("reentrant call = %q", reentrant)
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if got, _ := target.Invoke(nil, "x"); got != "original:x" {
		t.Fatalf("after Dispose Invoke = %v", got)
	}
}

func TestVirtualTargetInjection(t *testing.T) {
	rt := stableRuntime()
	d := metadata.NewDomain(rt)
	typ := d.NewAssembly("App").NewType("App", "View", nil)
	typ.NewMethod(metadata.MethodSpec{
		Name:    "Measure",
		Virtual: true,
		Impl:    func(_ any, _ []any) any { return nil },
	})
	target := typ.NewMethod(metadata.MethodSpec{
		Name:    "Render",
		Virtual: true,
		Return:  metadata.TypeString,
		Impl:    func(_ any, _ []any) any { return "original" },
	})

	env := bytecodeEnv(&rt)
	h, err := env.Inject(target, func(metadata.Impl) metadata.Impl {
		return func(_ any, _ []any) any { return "patched" }
	})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	recv := metadata.NewInstance(typ)
	if got, _ := target.Invoke(recv); got != "patched" {
		t.Fatalf("virtual Invoke = %v", got)
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if got, _ := target.Invoke(recv); got != "original" {
		t.Fatalf("restored virtual Invoke = %v", got)
	}
}

// No native hooking, tiering active, no debugger: injection must fail
// fast without preparing or touching the target.
func TestUnsupportedFailsBeforeTouchingTarget(t *testing.T) {
	rt := tieredRuntime()
	target := newTarget(t, rt)
	env := bytecodeEnv(&rt)

	if _, err := env.Inject(target, func(orig metadata.Impl) metadata.Impl {
		return orig
	}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Inject err = %v, want ErrUnsupported", err)
	}
	if target.Prepared() {
		t.Fatal("unsupported injection prepared the target anyway")
	}
}

func TestLayoutMismatchIsFatal(t *testing.T) {
	rt := stableRuntime()
	target := newTarget(t, rt)
	if _, err := target.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// Scribble the entry word so it no longer matches what the runtime
	// resolved.
	var bogus int
	slot := (*unsafe.Pointer)(unsafe.Add(target.Descriptor(), descEntryOffset))
	saved := *slot
	*slot = unsafe.Pointer(&bogus)
	defer func() { *slot = saved }()

	env := bytecodeEnv(&rt)
	if _, err := env.Inject(target, func(orig metadata.Impl) metadata.Impl {
		return orig
	}); !errors.Is(err, ErrLayoutMismatch) {
		t.Fatalf("Inject err = %v, want ErrLayoutMismatch", err)
	}
}

package metadata

import (
	"errors"
	"fmt"
	"unsafe"
)

// Impl is the canonical calling convention for prepared method bodies:
// a boxed receiver (nil for static methods), the declared arguments in
// order, and a single boxed result (nil for void).
type Impl func(recv any, args []any) any

var (
	// ErrNoImpl is returned when preparing a method that has no
	// registered implementation (for example one loaded from an image).
	ErrNoImpl = errors.New("metadata: method has no implementation")
)

// MethodDef is one method of a loaded assembly: its signature, its raw
// CIL body for the scanner, and its runtime descriptor for dispatch.
type MethodDef struct {
	Name    string
	Decl    *TypeDef
	Static  bool
	Virtual bool
	Params  []ParamDef
	Return  *TypeDef
	Body    []byte
	Attrs   []string

	token uint32
	slot  int
	impl  Impl
	desc  *methodDesc
}

// MethodName implements cil.MethodHandle.
func (m *MethodDef) MethodName() string { return m.Name }

// Token returns the method's metadata token within its declaring module.
func (m *MethodDef) Token() uint32 { return m.token }

// FullName returns "Namespace.Type::Name".
func (m *MethodDef) FullName() string {
	if m.Decl == nil {
		return m.Name
	}
	return m.Decl.FullName() + "::" + m.Name
}

// SlotIndex returns the virtual slot index, or -1 for non-virtual methods.
func (m *MethodDef) SlotIndex() int {
	if !m.Virtual {
		return -1
	}
	return m.slot
}

// HasAttr reports whether the method carries the named marker attribute.
func (m *MethodDef) HasAttr(name string) bool {
	for _, a := range m.Attrs {
		if a == name {
			return true
		}
	}
	return false
}

// SetImpl registers the executable implementation behind the method.
// Re-registration after Prepare re-resolves the entry on the next Prepare.
func (m *MethodDef) SetImpl(impl Impl) { m.impl = impl }

// methodDesc mirrors the guest runtime's method descriptor. The field
// order is part of the patching contract: the injector addresses `entry`
// by a hard-coded byte offset and verifies the resident pointer before
// writing. entry holds the prepared implementation's function value.
type methodDesc struct {
	token uint32         // +0
	slot  int32          // +4
	flags uint32         // +8
	_     uint32         // +12
	entry unsafe.Pointer // +16, the patchable word for non-virtual methods
	table *methodTable   // +16+word

	// installed is what the runtime last resolved into the patchable
	// word. Patch-site verification compares the resident pointer
	// against it.
	installed unsafe.Pointer
}

// methodTable mirrors the guest runtime's per-type virtual dispatch
// table. `slots` points at the first element of the slot array; the
// injector reads it at a hard-coded offset and indexes by slot.
type methodTable struct {
	typeToken uint32          // +0
	slotCount uint32          // +4
	flags     uint32          // +8
	_         uint32          // +12
	slots     *unsafe.Pointer // +16, first element of the slot array

	store []unsafe.Pointer // backing array; keeps slot targets reachable
}

const descFlagStatic = 1 << 0

// EntryOf extracts the function-value pointer behind an implementation.
func EntryOf(impl Impl) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&impl))
}

// ImplFromEntry reconstructs a callable implementation from a
// function-value pointer previously produced by EntryOf or read from a
// descriptor slot.
func ImplFromEntry(p unsafe.Pointer) Impl {
	return *(*Impl)(unsafe.Pointer(&p))
}

// runtime returns the owning domain's runtime, or nil for builtins.
func (m *MethodDef) runtime() *Runtime {
	if m.Decl == nil || m.Decl.Asm == nil || m.Decl.Asm.Domain == nil {
		return nil
	}
	return &m.Decl.Asm.Domain.Runtime
}

// ensureTable builds the declaring type's virtual slot table.
func (t *TypeDef) ensureTable() *methodTable {
	if t.table != nil {
		return t.table
	}
	n := 0
	for _, m := range t.Methods {
		if m.Virtual && m.slot >= n {
			n = m.slot + 1
		}
	}
	mt := &methodTable{
		typeToken: t.token,
		slotCount: uint32(n),
		store:     make([]unsafe.Pointer, max(n, 1)),
	}
	mt.slots = &mt.store[0]
	t.table = mt
	return mt
}

// Prepare resolves the method to an executable entry and returns the
// entry pointer. On a pre-tiering runtime the pointer is final: repeated
// calls return the same value, and a patched slot stays patched. On a
// tiering runtime without a debugger attached each call may re-resolve
// the implementation, which is exactly why the bytecode injection
// strategy refuses to run there.
func (m *MethodDef) Prepare() (unsafe.Pointer, error) {
	if m.impl == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImpl, m.FullName())
	}
	if m.desc == nil {
		var flags uint32
		if m.Static {
			flags |= descFlagStatic
		}
		m.desc = &methodDesc{
			token: m.token,
			slot:  int32(m.SlotIndex()),
			flags: flags,
		}
		if m.Decl != nil {
			m.desc.table = m.Decl.ensureTable()
		}
		m.installEntry(EntryOf(m.impl))
	} else if rt := m.runtime(); rt != nil && rt.tierActive() {
		// Tier-up re-resolution: a fresh wrapper per preparation, so the
		// previously observed entry pointer no longer governs dispatch.
		impl := m.impl
		m.installEntry(EntryOf(func(recv any, args []any) any {
			return impl(recv, args)
		}))
	}
	return m.desc.installed, nil
}

// installEntry stores the entry through the same locations the injector
// patches: the descriptor word for non-virtual methods, the declaring
// type's slot array for virtual ones.
func (m *MethodDef) installEntry(p unsafe.Pointer) {
	m.desc.installed = p
	if m.Virtual && m.desc.table != nil {
		m.desc.table.store[m.slot] = p
		return
	}
	m.desc.entry = p
}

// entryWord reads the currently resolved entry pointer.
func (m *MethodDef) entryWord() unsafe.Pointer {
	if m.desc == nil {
		return nil
	}
	if m.Virtual && m.desc.table != nil {
		return m.desc.table.store[m.slot]
	}
	return m.desc.entry
}

// Descriptor exposes the raw method descriptor for the injector's
// address computation. Callers must treat it as opaque.
func (m *MethodDef) Descriptor() unsafe.Pointer {
	return unsafe.Pointer(m.desc)
}

// TableBase exposes the declaring type's raw method table, or nil if the
// method was never prepared.
func (m *MethodDef) TableBase() unsafe.Pointer {
	if m.desc == nil {
		return nil
	}
	return unsafe.Pointer(m.desc.table)
}

// Prepared reports whether the method has a resolved descriptor.
func (m *MethodDef) Prepared() bool { return m.desc != nil }

// Invoke calls the method through its resolved entry, so an injector
// patch on the descriptor word or slot array takes effect immediately.
// Unprepared methods are prepared on first invoke.
func (m *MethodDef) Invoke(recv any, args ...any) (any, error) {
	if m.desc == nil {
		if _, err := m.Prepare(); err != nil {
			return nil, err
		}
	}
	entry := m.entryWord()
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImpl, m.FullName())
	}
	return ImplFromEntry(entry)(recv, args), nil
}

// IsBuildShape reports whether the method matches the generated build
// entry-point signature: static, returning a value, taking either no
// arguments or a single service-provider argument.
func (m *MethodDef) IsBuildShape() bool {
	if !m.Static || m.Return == nil || m.Return.Kind == KindVoid {
		return false
	}
	switch len(m.Params) {
	case 0:
		return true
	case 1:
		return m.Params[0].Type == TypeServiceProvider ||
			m.Params[0].Type.AssignableFrom(TypeServiceProvider)
	default:
		return false
	}
}

// IsPopulateShape reports whether the method matches the generated
// populate signature: (service provider, instance) returning void.
func (m *MethodDef) IsPopulateShape() bool {
	if m.Return != nil && m.Return.Kind != KindVoid {
		return false
	}
	if len(m.Params) != 2 {
		return false
	}
	first := m.Params[0].Type
	if first != TypeServiceProvider && !first.AssignableFrom(TypeServiceProvider) {
		return false
	}
	return m.Params[1].Type != nil && m.Params[1].Type.Kind != KindVoid
}

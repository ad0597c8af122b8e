package metadata

import (
	"errors"
	"testing"
	"unsafe"
)

const wordSize = unsafe.Sizeof(uintptr(0))

func TestPrepareAndInvoke(t *testing.T) {
	a := testDomain().NewAssembly("App")
	typ := a.NewType("App", "Greeter", nil)
	m := typ.NewMethod(MethodSpec{
		Name:   "Greet",
		Static: true,
		Params: []ParamDef{{Name: "who", Type: TypeString}},
		Return: TypeString,
		Impl: func(_ any, args []any) any {
			return "hello " + args[0].(string)
		},
	})

	e1, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	e2, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if e1 != e2 {
		t.Fatal("entry pointer changed across prepares on a stable runtime")
	}

	got, err := m.Invoke(nil, "world")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("Invoke = %v", got)
	}
}

func TestPrepareWithoutImpl(t *testing.T) {
	a := testDomain().NewAssembly("App")
	typ := a.NewType("App", "Empty", nil)
	m := typ.NewMethod(MethodSpec{Name: "Ghost"})
	if _, err := m.Prepare(); !errors.Is(err, ErrNoImpl) {
		t.Fatalf("Prepare err = %v, want ErrNoImpl", err)
	}
}

// Overwriting the descriptor's entry word must redirect Invoke. This is
// the same word the injector patches; the offset is part of the layout
// contract.
func TestDescriptorEntryPatch(t *testing.T) {
	a := testDomain().NewAssembly("App")
	typ := a.NewType("App", "Patchee", nil)
	m := typ.NewMethod(MethodSpec{
		Name:   "Answer",
		Static: true,
		Return: TypeInt32,
		Impl:   func(_ any, _ []any) any { return int32(1) },
	})
	entry, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	slot := (*unsafe.Pointer)(unsafe.Add(m.Descriptor(), 16))
	if *slot != entry {
		t.Fatalf("descriptor word at +16 is %p, want prepared entry %p", *slot, entry)
	}

	replacement := Impl(func(_ any, _ []any) any { return int32(2) })
	*slot = EntryOf(replacement)

	got, err := m.Invoke(nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != int32(2) {
		t.Fatalf("patched Invoke = %v, want 2", got)
	}

	*slot = entry
	got, _ = m.Invoke(nil)
	if got != int32(1) {
		t.Fatalf("restored Invoke = %v, want 1", got)
	}
}

// Virtual methods dispatch through the declaring type's slot array, not
// the descriptor word.
func TestVirtualSlotPatch(t *testing.T) {
	a := testDomain().NewAssembly("App")
	typ := a.NewType("App", "Virtuals", nil)
	typ.NewMethod(MethodSpec{
		Name:    "First",
		Virtual: true,
		Impl:    func(_ any, _ []any) any { return nil },
	})
	m := typ.NewMethod(MethodSpec{
		Name:    "Render",
		Virtual: true,
		Return:  TypeString,
		Impl:    func(_ any, _ []any) any { return "original" },
	})
	if _, err := m.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	base := m.TableBase()
	if base == nil {
		t.Fatal("no method table after prepare")
	}
	slots := *(**unsafe.Pointer)(unsafe.Add(base, 16))
	addr := (*unsafe.Pointer)(unsafe.Add(unsafe.Pointer(slots), uintptr(m.SlotIndex())*wordSize))

	replacement := Impl(func(_ any, _ []any) any { return "patched" })
	*addr = EntryOf(replacement)

	got, err := m.Invoke(NewInstance(typ))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "patched" {
		t.Fatalf("virtual patched Invoke = %v", got)
	}
}

func TestTieringReresolvesEntries(t *testing.T) {
	d := NewDomain(Runtime{
		Version:        Version{8, 0},
		TieringEnabled: true,
		DebugProbe:     func() bool { return false },
	})
	a := d.NewAssembly("App")
	typ := a.NewType("App", "Tiered", nil)
	m := typ.NewMethod(MethodSpec{
		Name:   "Tick",
		Static: true,
		Return: TypeInt32,
		Impl:   func(_ any, _ []any) any { return int32(7) },
	})

	e1, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	first := *(*unsafe.Pointer)(unsafe.Add(m.Descriptor(), 16))
	if _, err := m.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	second := *(*unsafe.Pointer)(unsafe.Add(m.Descriptor(), 16))
	if first == second {
		t.Fatal("tiering runtime reused the entry across prepares")
	}
	_ = e1

	// The rewrapped entry still runs the registered implementation.
	got, err := m.Invoke(nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != int32(7) {
		t.Fatalf("Invoke after tier-up = %v", got)
	}
}

func TestBuildAndPopulateShapes(t *testing.T) {
	a := testDomain().NewAssembly("App")
	typ := a.NewType("App", "Shapes", nil)
	win := a.NewType("App.Views", "MainWindow", nil)

	build := typ.NewMethod(MethodSpec{Name: "Build", Static: true, Return: TypeObject})
	buildSP := typ.NewMethod(MethodSpec{
		Name:   "BuildSP",
		Static: true,
		Params: []ParamDef{{Name: "sp", Type: TypeServiceProvider}},
		Return: TypeObject,
	})
	instance := typ.NewMethod(MethodSpec{Name: "NotStatic", Return: TypeObject})
	void := typ.NewMethod(MethodSpec{Name: "VoidBuild", Static: true})
	populate := typ.NewMethod(MethodSpec{
		Name:   "Populate",
		Static: true,
		Params: []ParamDef{
			{Name: "sp", Type: TypeServiceProvider},
			{Name: "target", Type: win},
		},
	})

	if !build.IsBuildShape() || !buildSP.IsBuildShape() {
		t.Error("build shapes not recognized")
	}
	if instance.IsBuildShape() || void.IsBuildShape() {
		t.Error("non-build shapes accepted")
	}
	if !populate.IsPopulateShape() {
		t.Error("populate shape not recognized")
	}
	if build.IsPopulateShape() {
		t.Error("build accepted as populate")
	}
}

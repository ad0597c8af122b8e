package inject

import (
	"fmt"
	"unsafe"

	"rekindle/internal/metadata"
)

// Runtime layout constants for the bytecode strategy. The prepared
// entry word sits at a fixed offset into the method descriptor; virtual
// methods dispatch through the type's slot array instead, whose base
// pointer sits at the same offset into the method table. Both are tied
// to this runtime family's layout and are verified before every write.
const (
	descEntryOffset  = 16
	tableSlotsOffset = 16

	wordSize = unsafe.Sizeof(uintptr(0))
)

// bytecodePatch overwrites the pointer slot the runtime dispatches
// through. The original pointer is captured once at construction and
// never overwritten afterward.
type bytecodePatch struct {
	slot     *unsafe.Pointer
	original unsafe.Pointer
	entry    unsafe.Pointer

	// Both implementations are pinned here so the function values the
	// raw pointers refer to stay reachable while the patch lives.
	origImpl metadata.Impl
	replImpl metadata.Impl
}

// newBytecodePatch prepares the target, computes the slot address from
// the layout constants, and verifies the slot holds the prepared entry.
// A mismatch is ErrLayoutMismatch and aborts before anything is written.
func newBytecodePatch(target *metadata.MethodDef, repl Replacement) (*bytecodePatch, error) {
	prepared, err := target.Prepare()
	if err != nil {
		return nil, fmt.Errorf("inject: prepare %s: %w", target.FullName(), err)
	}

	slot, err := slotAddress(target)
	if err != nil {
		return nil, err
	}
	if *slot != prepared {
		return nil, fmt.Errorf("%w: %s slot %p holds %p, expected prepared entry %p",
			ErrLayoutMismatch, target.FullName(), slot, *slot, prepared)
	}

	p := &bytecodePatch{
		slot:     slot,
		original: *slot,
	}
	p.origImpl = metadata.ImplFromEntry(p.original)
	p.replImpl = repl(p.origImpl)
	p.entry = metadata.EntryOf(p.replImpl)
	return p, nil
}

// slotAddress resolves the patchable word: the virtual-slot array entry
// for virtual methods, the descriptor's entry word otherwise.
func slotAddress(target *metadata.MethodDef) (*unsafe.Pointer, error) {
	desc := target.Descriptor()
	if desc == nil {
		return nil, fmt.Errorf("inject: %s has no descriptor", target.FullName())
	}
	if idx := target.SlotIndex(); idx >= 0 {
		base := target.TableBase()
		if base == nil {
			return nil, fmt.Errorf("inject: %s has no method table", target.FullName())
		}
		slots := *(**unsafe.Pointer)(unsafe.Add(base, tableSlotsOffset))
		if slots == nil {
			return nil, fmt.Errorf("%w: %s slot array is nil", ErrLayoutMismatch, target.FullName())
		}
		return (*unsafe.Pointer)(unsafe.Add(unsafe.Pointer(slots), uintptr(idx)*wordSize)), nil
	}
	return (*unsafe.Pointer)(unsafe.Add(desc, descEntryOffset)), nil
}

func (p *bytecodePatch) apply() error {
	// Re-applying over our own entry is fine; any other resident
	// pointer means the runtime moved the method underneath us.
	if got := *p.slot; got != p.original && got != p.entry {
		return fmt.Errorf("%w: slot %p holds %p", ErrLayoutMismatch, p.slot, got)
	}
	*p.slot = p.entry
	return nil
}

func (p *bytecodePatch) undo() error {
	*p.slot = p.original
	return nil
}

func (p *bytecodePatch) release() {}

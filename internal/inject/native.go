//go:build linux && (amd64 || arm64)

package inject

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"rekindle/internal/metadata"
)

const nativeSupported = true

// nativePatch hooks at the machine-code level. The target's entry word
// is redirected through a small executable precode page that jumps
// through an absolute function-value address embedded in its code.
// Hooking rewrites that address in place, so the hook survives even a
// runtime that re-resolves entry pointers: the precode itself is never
// reallocated. A second page holds a copy of the original precode and
// backs the callable "original" delegate handed to the replacement.
type nativePatch struct {
	target     *metadata.MethodDef
	page       []byte
	trampoline []byte

	slot       *unsafe.Pointer
	savedEntry unsafe.Pointer // funcval resident before the precode was installed
	thunkEntry unsafe.Pointer

	// One-word function values for the two pages, plus the
	// implementations, pinned for the lifetime of the patch.
	thunkFuncval *unsafe.Pointer
	trampFuncval *unsafe.Pointer
	origImpl     metadata.Impl
	replImpl     metadata.Impl
	replEntry    unsafe.Pointer
}

func newNativePatch(target *metadata.MethodDef, repl Replacement) (*nativePatch, error) {
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

	payload := thunkPayload(uintptr(prepared))
	// The stolen region must relocate cleanly into the trampoline:
	// every position-relative reference has to land back inside it.
	if err := validateStolen(payload); err != nil {
		return nil, fmt.Errorf("%s: %w", target.FullName(), err)
	}

	page, err := mapExecutable(payload)
	if err != nil {
		return nil, err
	}
	trampoline, err := mapExecutable(payload)
	if err != nil {
		unmap(page)
		return nil, err
	}

	p := &nativePatch{
		target:     target,
		page:       page,
		trampoline: trampoline,
		slot:       slot,
		savedEntry: prepared,
	}
	p.thunkFuncval = new(unsafe.Pointer)
	*p.thunkFuncval = unsafe.Pointer(&page[0])
	p.thunkEntry = unsafe.Pointer(p.thunkFuncval)

	p.trampFuncval = new(unsafe.Pointer)
	*p.trampFuncval = unsafe.Pointer(&trampoline[0])
	p.origImpl = metadata.ImplFromEntry(unsafe.Pointer(p.trampFuncval))

	p.replImpl = repl(p.origImpl)
	p.replEntry = metadata.EntryOf(p.replImpl)
	return p, nil
}

func (p *nativePatch) apply() error {
	if got := *p.slot; got != p.savedEntry && got != p.thunkEntry {
		return fmt.Errorf("%w: slot %p holds %p", ErrLayoutMismatch, p.slot, got)
	}
	if err := patchThunkTarget(p.page, uintptr(p.replEntry)); err != nil {
		return err
	}
	*p.slot = p.thunkEntry
	return nil
}

// undo points the precode back at the original function value. The
// precode stays installed; dispatch through it is behaviorally
// identical to the pre-injection path.
func (p *nativePatch) undo() error {
	return patchThunkTarget(p.page, uintptr(p.savedEntry))
}

func (p *nativePatch) release() {
	*p.slot = p.savedEntry
	unmap(p.trampoline)
	unmap(p.page)
	p.page, p.trampoline = nil, nil
}

// patchThunkTarget rewrites the absolute jump-target word inside an
// installed precode, flipping the page writable around the store.
func patchThunkTarget(page []byte, funcval uintptr) error {
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("inject: unprotect precode: %w", err)
	}
	writeThunkTarget(page, funcval)
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("inject: reprotect precode: %w", err)
	}
	return nil
}

// mapExecutable maps a fresh anonymous page, copies code into it, and
// seals it read-execute.
func mapExecutable(code []byte) ([]byte, error) {
	size := os.Getpagesize()
	if len(code) > size {
		return nil, fmt.Errorf("inject: precode larger than a page (%d bytes)", len(code))
	}
	page, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("inject: map precode page: %w", err)
	}
	copy(page, code)
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(page)
		return nil, fmt.Errorf("inject: seal precode page: %w", err)
	}
	return page, nil
}

func unmap(page []byte) {
	if page != nil {
		_ = unix.Munmap(page)
	}
}

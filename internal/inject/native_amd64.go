//go:build linux && amd64

package inject

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// thunkTargetOffset is where the absolute function-value address sits
// inside the precode payload.
const thunkTargetOffset = 2

// thunkPayload emits the amd64 precode:
//
//	mov rdx, funcval
//	jmp [rdx]
//
// RDX is the closure context register, so the jump lands in the
// function value's code with the context already in place; closures and
// one-word constructed function values both dispatch correctly.
func thunkPayload(funcval uintptr) []byte {
	p := make([]byte, 0, 12)
	p = append(p, 0x48, 0xBA)
	p = binary.LittleEndian.AppendUint64(p, uint64(funcval))
	return append(p, 0xFF, 0x22)
}

func writeThunkTarget(page []byte, funcval uintptr) {
	binary.LittleEndian.PutUint64(page[thunkTargetOffset:], uint64(funcval))
}

// validateStolen decodes the region that will be copied into the
// trampoline and rejects any instruction whose position-relative target
// falls outside it: such an instruction would resolve differently after
// relocation.
func validateStolen(code []byte) error {
	for pos := 0; pos < len(code); {
		inst, err := x86asm.Decode(code[pos:], 64)
		if err != nil {
			return fmt.Errorf("%w: undecodable instruction at +%d", ErrPatchSite, pos)
		}
		end := pos + inst.Len
		for _, arg := range inst.Args {
			switch a := arg.(type) {
			case x86asm.Rel:
				if t := end + int(a); t < 0 || t >= len(code) {
					return fmt.Errorf("%w: %s at +%d targets outside the region", ErrPatchSite, inst.Op, pos)
				}
			case x86asm.Mem:
				if a.Base == x86asm.RIP {
					if t := int64(end) + a.Disp; t < 0 || t >= int64(len(code)) {
						return fmt.Errorf("%w: RIP-relative %s at +%d", ErrPatchSite, inst.Op, pos)
					}
				}
			}
		}
		pos = end
	}
	return nil
}

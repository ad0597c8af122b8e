//go:build linux && arm64

package inject

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
)

// thunkTargetOffset is where the absolute function-value address sits
// inside the precode payload (the literal pool slot).
const thunkTargetOffset = 16

// thunkPayload emits the arm64 precode:
//
//	ldr x26, target   ; closure context register
//	ldr x16, [x26]
//	br  x16
//	nop               ; pads the literal to 8-byte alignment
//	target: .quad funcval
//
// X26 is the closure context register and X16 an intra-procedure
// scratch register, so the jump lands in the function value's code with
// the context already in place.
func thunkPayload(funcval uintptr) []byte {
	p := make([]byte, 0, 24)
	p = binary.LittleEndian.AppendUint32(p, 0x5800009A) // ldr x26, +16
	p = binary.LittleEndian.AppendUint32(p, 0xF9400350) // ldr x16, [x26]
	p = binary.LittleEndian.AppendUint32(p, 0xD61F0200) // br x16
	p = binary.LittleEndian.AppendUint32(p, 0xD503201F) // nop
	return binary.LittleEndian.AppendUint64(p, uint64(funcval))
}

func writeThunkTarget(page []byte, funcval uintptr) {
	binary.LittleEndian.PutUint64(page[thunkTargetOffset:], uint64(funcval))
}

// validateStolen decodes the code portion of the region that will be
// copied into the trampoline and rejects any instruction whose
// position-relative target falls outside it: such an instruction would
// resolve differently after relocation. Decoding stops at the first
// register branch, which ends the instruction stream ahead of literal
// data.
func validateStolen(code []byte) error {
	for pos := 0; pos+4 <= len(code); pos += 4 {
		inst, err := arm64asm.Decode(code[pos:])
		if err != nil {
			return fmt.Errorf("%w: undecodable instruction at +%d", ErrPatchSite, pos)
		}
		for _, arg := range inst.Args {
			rel, ok := arg.(arm64asm.PCRel)
			if !ok {
				continue
			}
			if t := pos + int(rel); t < 0 || t >= len(code) {
				return fmt.Errorf("%w: %s at +%d targets outside the region", ErrPatchSite, inst.Op, pos)
			}
		}
		if inst.Op == arm64asm.BR || inst.Op == arm64asm.RET || inst.Op == arm64asm.B {
			break
		}
	}
	return nil
}

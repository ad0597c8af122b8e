package cil

import "sync"

// The dense opcode table: slots [0,255] hold single-byte opcodes, slots
// [256,511] hold the 0xFE-prefixed space keyed by low byte. Unassigned
// slots stay empty (Name == "").
var (
	tableOnce sync.Once
	table     [512]OpCode
)

func buildTable() {
	for _, oc := range catalog {
		table[oc.slot()] = oc
	}
}

// lookupTable returns the dense table, building it on first use. Building
// is idempotent and safe for concurrent callers.
func lookupTable() *[512]OpCode {
	tableOnce.Do(buildTable)
	return &table
}

// TryReadOpCode inspects the first one or two bytes of buf and returns the
// matching opcode. It returns false, never panics, on an empty buffer, an
// unknown leading byte, or a truncated two-byte form.
func TryReadOpCode(buf []byte) (OpCode, bool) {
	if len(buf) == 0 {
		return OpCode{}, false
	}
	t := lookupTable()
	b := buf[0]
	if b == twoBytePrefix {
		if len(buf) < 2 {
			return OpCode{}, false
		}
		oc := t[0x100+int(buf[1])]
		if oc.Name == "" {
			return OpCode{}, false
		}
		return oc, true
	}
	oc := t[int(b)]
	if oc.Name == "" {
		return OpCode{}, false
	}
	return oc, true
}

// Append writes the opcode's encoding (1 or 2 bytes) to dst.
func (op OpCode) Append(dst []byte) []byte {
	if op.TwoByte() {
		return append(dst, twoBytePrefix, byte(op.Value))
	}
	return append(dst, byte(op.Value))
}

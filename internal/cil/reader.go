package cil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOperandWidth is returned by a typed accessor whose requested
	// width differs from the current opcode's declared operand size.
	ErrOperandWidth = errors.New("cil: operand width mismatch")
	// ErrNotToken is returned by token accessors against a non-token operand.
	ErrNotToken = errors.New("cil: operand is not a metadata token")
)

// MethodHandle is an opaque reference to a resolved method, implemented by
// the metadata layer.
type MethodHandle interface{ MethodName() string }

// FieldHandle is an opaque reference to a resolved field.
type FieldHandle interface{ FieldName() string }

// TypeHandle is an opaque reference to a resolved type.
type TypeHandle interface{ TypeName() string }

// TokenResolver resolves 32-bit metadata tokens against the module that
// declares the method being decoded.
type TokenResolver interface {
	ResolveString(token uint32) (string, error)
	ResolveMethod(token uint32) (MethodHandle, error)
	ResolveField(token uint32) (FieldHandle, error)
	ResolveType(token uint32) (TypeHandle, error)
}

// Reader is a cursor over one immutable method body. Next advances one
// instruction at a time; on failure it reports false and leaves all state
// untouched, so a caller can treat a partial decode as "nothing further".
type Reader struct {
	body []byte
	pos  int // consumed bytes; start of the next instruction

	// Current instruction, valid after a true Next.
	op      OpCode
	offset  int
	operand []byte
	jump    []int32
}

// NewReader returns a reader positioned before the first instruction.
func NewReader(body []byte) *Reader {
	return &Reader{body: body}
}

// Offset returns the byte offset of the current instruction's opcode.
func (r *Reader) Offset() int { return r.offset }

// Consumed returns the total bytes consumed so far.
func (r *Reader) Consumed() int { return r.pos }

// Op returns the current opcode.
func (r *Reader) Op() OpCode { return r.op }

// Operand returns the raw operand bytes of the current instruction. For
// switch instructions it covers the case count and the jump table.
func (r *Reader) Operand() []byte { return r.operand }

// JumpTable returns the decoded switch targets, or nil for any other opcode.
func (r *Reader) JumpTable() []int32 { return r.jump }

// Next decodes the instruction at the current position. It returns false,
// with the reader unchanged, when the buffer is exhausted, the leading
// byte(s) map to no known opcode, the declared operand runs past the end,
// or a switch case count would exceed the buffer.
func (r *Reader) Next() bool {
	if r.pos >= len(r.body) {
		return false
	}
	oc, ok := TryReadOpCode(r.body[r.pos:])
	if !ok {
		return false
	}
	start := r.pos
	opEnd := start + oc.EncodedSize()

	if oc.Operand == InlineSwitch {
		if opEnd+4 > len(r.body) {
			return false
		}
		n := binary.LittleEndian.Uint32(r.body[opEnd : opEnd+4])
		// Cap before multiplying so a hostile count cannot overflow.
		if n > uint32(len(r.body)/4) {
			return false
		}
		end := opEnd + 4 + int(n)*4
		if end > len(r.body) {
			return false
		}
		jump := make([]int32, n)
		for i := range jump {
			off := opEnd + 4 + i*4
			jump[i] = int32(binary.LittleEndian.Uint32(r.body[off : off+4]))
		}
		r.op = oc
		r.offset = start
		r.operand = r.body[opEnd:end]
		r.jump = jump
		r.pos = end
		return true
	}

	size := oc.Operand.Size()
	end := opEnd + size
	if end > len(r.body) {
		return false
	}
	r.op = oc
	r.offset = start
	r.operand = r.body[opEnd:end]
	r.jump = nil
	r.pos = end
	return true
}

func (r *Reader) requireWidth(n int) error {
	if r.op.Operand == InlineSwitch || len(r.operand) != n {
		return fmt.Errorf("%w: %s carries %d bytes, want %d",
			ErrOperandWidth, r.op, len(r.operand), n)
	}
	return nil
}

// OperandInt8 reads a 1-byte operand.
func (r *Reader) OperandInt8() (int8, error) {
	if err := r.requireWidth(1); err != nil {
		return 0, err
	}
	return int8(r.operand[0]), nil
}

// OperandInt16 reads a 2-byte operand.
func (r *Reader) OperandInt16() (int16, error) {
	if err := r.requireWidth(2); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(r.operand)), nil
}

// OperandInt32 reads a 4-byte operand.
func (r *Reader) OperandInt32() (int32, error) {
	if err := r.requireWidth(4); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(r.operand)), nil
}

// OperandInt64 reads an 8-byte operand.
func (r *Reader) OperandInt64() (int64, error) {
	if err := r.requireWidth(8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(r.operand)), nil
}

// OperandFloat32 reads a 4-byte float operand (ldc.r4).
func (r *Reader) OperandFloat32() (float32, error) {
	if r.op.Operand != ShortInlineR {
		return 0, fmt.Errorf("%w: %s is not a float32 operand", ErrOperandWidth, r.op)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.operand)), nil
}

// OperandFloat64 reads an 8-byte float operand (ldc.r8).
func (r *Reader) OperandFloat64() (float64, error) {
	if r.op.Operand != InlineR {
		return 0, fmt.Errorf("%w: %s is not a float64 operand", ErrOperandWidth, r.op)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.operand)), nil
}

// OperandToken reads the current 4-byte metadata token.
func (r *Reader) OperandToken() (uint32, error) {
	if !r.op.Operand.IsToken() {
		return 0, fmt.Errorf("%w: %s", ErrNotToken, r.op)
	}
	return binary.LittleEndian.Uint32(r.operand), nil
}

// ResolveString resolves the current instruction's user-string token.
func (r *Reader) ResolveString(res TokenResolver) (string, error) {
	if r.op.Operand != InlineString {
		return "", fmt.Errorf("%w: %s", ErrNotToken, r.op)
	}
	return res.ResolveString(binary.LittleEndian.Uint32(r.operand))
}

// ResolveMethod resolves the current instruction's method token.
func (r *Reader) ResolveMethod(res TokenResolver) (MethodHandle, error) {
	if r.op.Operand != InlineMethod {
		return nil, fmt.Errorf("%w: %s", ErrNotToken, r.op)
	}
	return res.ResolveMethod(binary.LittleEndian.Uint32(r.operand))
}

// ResolveField resolves the current instruction's field token.
func (r *Reader) ResolveField(res TokenResolver) (FieldHandle, error) {
	if r.op.Operand != InlineField {
		return nil, fmt.Errorf("%w: %s", ErrNotToken, r.op)
	}
	return res.ResolveField(binary.LittleEndian.Uint32(r.operand))
}

// ResolveType resolves the current instruction's type token.
func (r *Reader) ResolveType(res TokenResolver) (TypeHandle, error) {
	if r.op.Operand != InlineType {
		return nil, fmt.Errorf("%w: %s", ErrNotToken, r.op)
	}
	return res.ResolveType(binary.LittleEndian.Uint32(r.operand))
}

// FindOpCode scans body end to end and returns the byte offset of the
// first instruction whose opcode equals op, or -1 if no instruction
// matches before decoding stops.
func FindOpCode(body []byte, op OpCode) int {
	r := NewReader(body)
	for r.Next() {
		if r.Op().Value == op.Value {
			return r.Offset()
		}
	}
	return -1
}

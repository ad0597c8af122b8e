package cil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrEncode is wrapped by every encoder failure.
var ErrEncode = errors.New("cil: encode")

// Encoder assembles a method body instruction by instruction. It validates
// operand widths against the opcode's declared kind; the first violation
// sticks and is reported by Err and Bytes. Produced bodies round-trip
// through Reader byte for byte.
type Encoder struct {
	buf []byte
	err error
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Err returns the first recorded encoding error, if any.
func (e *Encoder) Err() error { return e.err }

// Len returns the encoded length so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the encoded body, or the first recorded error.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// MustBytes returns the encoded body and panics on a recorded error.
// Intended for fixtures whose shape is fixed at compile time.
func (e *Encoder) MustBytes() []byte {
	b, err := e.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

func (e *Encoder) fail(op OpCode, want OperandKind) *Encoder {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s declares %v, emitted as %v", ErrEncode, op, op.Operand, want)
	}
	return e
}

func (e *Encoder) expect(op OpCode, kinds ...OperandKind) bool {
	if e.err != nil {
		return false
	}
	for _, k := range kinds {
		if op.Operand == k {
			return true
		}
	}
	e.fail(op, kinds[0])
	return false
}

// Op emits an operand-less instruction.
func (e *Encoder) Op(op OpCode) *Encoder {
	if !e.expect(op, InlineNone) {
		return e
	}
	e.buf = op.Append(e.buf)
	return e
}

// Int8 emits an instruction with a 1-byte operand.
func (e *Encoder) Int8(op OpCode, v int8) *Encoder {
	if !e.expect(op, ShortInlineVar, ShortInlineI, ShortInlineBrTarget) {
		return e
	}
	e.buf = append(op.Append(e.buf), byte(v))
	return e
}

// Int16 emits an instruction with a 2-byte operand.
func (e *Encoder) Int16(op OpCode, v int16) *Encoder {
	if !e.expect(op, InlineVar) {
		return e
	}
	e.buf = binary.LittleEndian.AppendUint16(op.Append(e.buf), uint16(v))
	return e
}

// Int32 emits an instruction with a 4-byte immediate or branch operand.
func (e *Encoder) Int32(op OpCode, v int32) *Encoder {
	if !e.expect(op, InlineI, InlineBrTarget) {
		return e
	}
	e.buf = binary.LittleEndian.AppendUint32(op.Append(e.buf), uint32(v))
	return e
}

// Int64 emits an instruction with an 8-byte operand.
func (e *Encoder) Int64(op OpCode, v int64) *Encoder {
	if !e.expect(op, InlineI8) {
		return e
	}
	e.buf = binary.LittleEndian.AppendUint64(op.Append(e.buf), uint64(v))
	return e
}

// Float32 emits ldc.r4-shaped instructions.
func (e *Encoder) Float32(op OpCode, v float32) *Encoder {
	if !e.expect(op, ShortInlineR) {
		return e
	}
	e.buf = binary.LittleEndian.AppendUint32(op.Append(e.buf), math.Float32bits(v))
	return e
}

// Float64 emits ldc.r8-shaped instructions.
func (e *Encoder) Float64(op OpCode, v float64) *Encoder {
	if !e.expect(op, InlineR) {
		return e
	}
	e.buf = binary.LittleEndian.AppendUint64(op.Append(e.buf), math.Float64bits(v))
	return e
}

// Token emits an instruction with a 4-byte metadata token operand.
func (e *Encoder) Token(op OpCode, token uint32) *Encoder {
	if e.err != nil {
		return e
	}
	if !op.Operand.IsToken() {
		return e.fail(op, InlineTok)
	}
	e.buf = binary.LittleEndian.AppendUint32(op.Append(e.buf), token)
	return e
}

// Switch emits a switch instruction with the given branch targets.
func (e *Encoder) Switch(targets []int32) *Encoder {
	if e.err != nil {
		return e
	}
	e.buf = Switch.Append(e.buf)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(targets)))
	for _, t := range targets {
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(t))
	}
	return e
}

// Raw appends bytes verbatim. Used by tests that need malformed streams.
func (e *Encoder) Raw(b ...byte) *Encoder {
	if e.err != nil {
		return e
	}
	e.buf = append(e.buf, b...)
	return e
}

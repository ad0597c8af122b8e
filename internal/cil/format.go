package cil

import (
	"fmt"
	"strings"
)

// Format renders a method body as a listing: offset, raw bytes,
// mnemonic, and the operand. Token operands are resolved through res
// when possible and shown as a comment; a nil res leaves tokens
// numeric. Undecodable bytes end the listing with a raw dump of the
// remainder.
func Format(body []byte, res TokenResolver) string {
	var b strings.Builder
	r := NewReader(body)
	for r.Next() {
		op := r.Op()
		size := op.EncodedSize() + len(r.Operand())

		fmt.Fprintf(&b, "IL_%04x  ", r.Offset())
		writeRaw(&b, body[r.Offset():r.Offset()+size])
		b.WriteString(op.Name)

		switch op.Operand {
		case InlineNone:
		case InlineSwitch:
			targets := make([]string, len(r.JumpTable()))
			for i, t := range r.JumpTable() {
				targets[i] = fmt.Sprintf("%+d", t)
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(targets, ", "))
		default:
			writeOperand(&b, r, res)
		}
		b.WriteByte('\n')
	}
	if rest := body[r.Consumed():]; len(rest) > 0 {
		fmt.Fprintf(&b, "IL_%04x  ", r.Consumed())
		writeRaw(&b, rest)
		b.WriteString("??\n")
	}
	return b.String()
}

// writeRaw prints up to eight raw bytes in a fixed-width column.
func writeRaw(b *strings.Builder, raw []byte) {
	const width = 8
	shown := raw
	if len(shown) > width {
		shown = shown[:width]
	}
	for _, c := range shown {
		fmt.Fprintf(b, "%02x ", c)
	}
	for i := len(shown); i < width; i++ {
		b.WriteString("   ")
	}
	b.WriteByte(' ')
}

func writeOperand(b *strings.Builder, r *Reader, res TokenResolver) {
	op := r.Op()
	if op.Operand.IsToken() {
		tok, err := r.OperandToken()
		if err != nil {
			return
		}
		fmt.Fprintf(b, " 0x%08x", tok)
		if res != nil {
			if comment := resolveComment(r, res); comment != "" {
				fmt.Fprintf(b, "  ; %s", comment)
			}
		}
		return
	}

	switch op.Operand {
	case ShortInlineVar, ShortInlineI, ShortInlineBrTarget:
		if v, err := r.OperandInt8(); err == nil {
			fmt.Fprintf(b, " %d", v)
		}
	case InlineVar:
		if v, err := r.OperandInt16(); err == nil {
			fmt.Fprintf(b, " %d", v)
		}
	case InlineI, InlineBrTarget:
		if v, err := r.OperandInt32(); err == nil {
			fmt.Fprintf(b, " %d", v)
		}
	case InlineI8:
		if v, err := r.OperandInt64(); err == nil {
			fmt.Fprintf(b, " %d", v)
		}
	case ShortInlineR:
		if v, err := r.OperandFloat32(); err == nil {
			fmt.Fprintf(b, " %g", v)
		}
	case InlineR:
		if v, err := r.OperandFloat64(); err == nil {
			fmt.Fprintf(b, " %g", v)
		}
	}
}

func resolveComment(r *Reader, res TokenResolver) string {
	switch r.Op().Operand {
	case InlineString:
		if s, err := r.ResolveString(res); err == nil {
			return fmt.Sprintf("%q", s)
		}
	case InlineMethod:
		if m, err := r.ResolveMethod(res); err == nil {
			return m.MethodName()
		}
	case InlineField:
		if f, err := r.ResolveField(res); err == nil {
			return f.FieldName()
		}
	case InlineType:
		if t, err := r.ResolveType(res); err == nil {
			return t.TypeName()
		}
	}
	return ""
}

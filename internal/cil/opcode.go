// Package cil decodes raw CIL (ECMA-335) method bodies one instruction at
// a time. It knows the instruction encoding only: operand widths, the
// two-byte 0xFE opcode space, and switch jump tables. It has no notion of
// stack effects or program semantics.
package cil

import "fmt"

// OperandKind classifies the operand encoding that follows an opcode.
type OperandKind uint8

const (
	InlineNone          OperandKind = iota // no operand
	ShortInlineVar                         // 1-byte local/argument index
	ShortInlineI                           // 1-byte immediate
	ShortInlineBrTarget                    // 1-byte branch displacement
	ShortInlineR                           // 4-byte float32 immediate
	InlineVar                              // 2-byte local/argument index
	InlineI                                // 4-byte immediate
	InlineI8                               // 8-byte immediate
	InlineR                                // 8-byte float64 immediate
	InlineBrTarget                         // 4-byte branch displacement
	InlineString                           // 4-byte user-string token
	InlineMethod                           // 4-byte method token
	InlineField                            // 4-byte field token
	InlineType                             // 4-byte type token
	InlineTok                              // 4-byte arbitrary metadata token
	InlineSig                              // 4-byte standalone signature token
	InlineSwitch                           // 4-byte count, then count 4-byte targets
)

// Size returns the fixed operand byte count for the kind, or -1 for
// InlineSwitch, whose total size depends on the embedded case count and is
// handled by the Reader.
func (k OperandKind) Size() int {
	switch k {
	case InlineNone:
		return 0
	case ShortInlineVar, ShortInlineI, ShortInlineBrTarget:
		return 1
	case InlineVar:
		return 2
	case ShortInlineR, InlineI, InlineBrTarget, InlineString, InlineMethod,
		InlineField, InlineType, InlineTok, InlineSig:
		return 4
	case InlineI8, InlineR:
		return 8
	case InlineSwitch:
		return -1
	default:
		return -1
	}
}

// IsToken reports whether the operand is a 4-byte metadata token.
func (k OperandKind) IsToken() bool {
	switch k {
	case InlineString, InlineMethod, InlineField, InlineType, InlineTok, InlineSig:
		return true
	}
	return false
}

// twoBytePrefix introduces the extended opcode space (0xFE 0xNN).
const twoBytePrefix = 0xFE

// OpCode describes one instruction of the encoding.
// Value is the raw encoding: 0x00..0xFF for single-byte opcodes,
// 0xFE00|low for two-byte opcodes.
type OpCode struct {
	Value   uint16
	Name    string
	Operand OperandKind
}

// TwoByte reports whether the opcode uses the 0xFE-prefixed encoding.
func (op OpCode) TwoByte() bool { return op.Value>>8 == twoBytePrefix }

// EncodedSize returns the opcode's own byte count (1 or 2), excluding
// the operand.
func (op OpCode) EncodedSize() int {
	if op.TwoByte() {
		return 2
	}
	return 1
}

// slot maps an opcode value to its dense table index: single-byte opcodes
// occupy [0,255], two-byte opcodes occupy [256,511] keyed by the low byte.
func (op OpCode) slot() int {
	if op.TwoByte() {
		return 0x100 + int(op.Value&0xFF)
	}
	return int(op.Value)
}

func (op OpCode) String() string {
	if op.Name == "" {
		return fmt.Sprintf("op(0x%04x)", op.Value)
	}
	return op.Name
}

// catalog lists every known opcode. The dense lookup table is built from
// it lazily on first decode.
var catalog []OpCode

func op1(value byte, name string, kind OperandKind) OpCode {
	oc := OpCode{Value: uint16(value), Name: name, Operand: kind}
	catalog = append(catalog, oc)
	return oc
}

func op2(low byte, name string, kind OperandKind) OpCode {
	oc := OpCode{Value: uint16(twoBytePrefix)<<8 | uint16(low), Name: name, Operand: kind}
	catalog = append(catalog, oc)
	return oc
}

// Single-byte opcode space.
var (
	Nop      = op1(0x00, "nop", InlineNone)
	Break    = op1(0x01, "break", InlineNone)
	Ldarg0   = op1(0x02, "ldarg.0", InlineNone)
	Ldarg1   = op1(0x03, "ldarg.1", InlineNone)
	Ldarg2   = op1(0x04, "ldarg.2", InlineNone)
	Ldarg3   = op1(0x05, "ldarg.3", InlineNone)
	Ldloc0   = op1(0x06, "ldloc.0", InlineNone)
	Ldloc1   = op1(0x07, "ldloc.1", InlineNone)
	Ldloc2   = op1(0x08, "ldloc.2", InlineNone)
	Ldloc3   = op1(0x09, "ldloc.3", InlineNone)
	Stloc0   = op1(0x0A, "stloc.0", InlineNone)
	Stloc1   = op1(0x0B, "stloc.1", InlineNone)
	Stloc2   = op1(0x0C, "stloc.2", InlineNone)
	Stloc3   = op1(0x0D, "stloc.3", InlineNone)
	LdargS   = op1(0x0E, "ldarg.s", ShortInlineVar)
	LdargaS  = op1(0x0F, "ldarga.s", ShortInlineVar)
	StargS   = op1(0x10, "starg.s", ShortInlineVar)
	LdlocS   = op1(0x11, "ldloc.s", ShortInlineVar)
	LdlocaS  = op1(0x12, "ldloca.s", ShortInlineVar)
	StlocS   = op1(0x13, "stloc.s", ShortInlineVar)
	Ldnull   = op1(0x14, "ldnull", InlineNone)
	LdcI4M1  = op1(0x15, "ldc.i4.m1", InlineNone)
	LdcI40   = op1(0x16, "ldc.i4.0", InlineNone)
	LdcI41   = op1(0x17, "ldc.i4.1", InlineNone)
	LdcI42   = op1(0x18, "ldc.i4.2", InlineNone)
	LdcI43   = op1(0x19, "ldc.i4.3", InlineNone)
	LdcI44   = op1(0x1A, "ldc.i4.4", InlineNone)
	LdcI45   = op1(0x1B, "ldc.i4.5", InlineNone)
	LdcI46   = op1(0x1C, "ldc.i4.6", InlineNone)
	LdcI47   = op1(0x1D, "ldc.i4.7", InlineNone)
	LdcI48   = op1(0x1E, "ldc.i4.8", InlineNone)
	LdcI4S   = op1(0x1F, "ldc.i4.s", ShortInlineI)
	LdcI4    = op1(0x20, "ldc.i4", InlineI)
	LdcI8    = op1(0x21, "ldc.i8", InlineI8)
	LdcR4    = op1(0x22, "ldc.r4", ShortInlineR)
	LdcR8    = op1(0x23, "ldc.r8", InlineR)
	Dup      = op1(0x25, "dup", InlineNone)
	Pop      = op1(0x26, "pop", InlineNone)
	Jmp      = op1(0x27, "jmp", InlineMethod)
	Call     = op1(0x28, "call", InlineMethod)
	Calli    = op1(0x29, "calli", InlineSig)
	Ret      = op1(0x2A, "ret", InlineNone)
	BrS      = op1(0x2B, "br.s", ShortInlineBrTarget)
	BrfalseS = op1(0x2C, "brfalse.s", ShortInlineBrTarget)
	BrtrueS  = op1(0x2D, "brtrue.s", ShortInlineBrTarget)
	BeqS     = op1(0x2E, "beq.s", ShortInlineBrTarget)
	BgeS     = op1(0x2F, "bge.s", ShortInlineBrTarget)
	BgtS     = op1(0x30, "bgt.s", ShortInlineBrTarget)
	BleS     = op1(0x31, "ble.s", ShortInlineBrTarget)
	BltS     = op1(0x32, "blt.s", ShortInlineBrTarget)
	BneUnS   = op1(0x33, "bne.un.s", ShortInlineBrTarget)
	BgeUnS   = op1(0x34, "bge.un.s", ShortInlineBrTarget)
	BgtUnS   = op1(0x35, "bgt.un.s", ShortInlineBrTarget)
	BleUnS   = op1(0x36, "ble.un.s", ShortInlineBrTarget)
	BltUnS   = op1(0x37, "blt.un.s", ShortInlineBrTarget)
	Br       = op1(0x38, "br", InlineBrTarget)
	Brfalse  = op1(0x39, "brfalse", InlineBrTarget)
	Brtrue   = op1(0x3A, "brtrue", InlineBrTarget)
	Beq      = op1(0x3B, "beq", InlineBrTarget)
	Bge      = op1(0x3C, "bge", InlineBrTarget)
	Bgt      = op1(0x3D, "bgt", InlineBrTarget)
	Ble      = op1(0x3E, "ble", InlineBrTarget)
	Blt      = op1(0x3F, "blt", InlineBrTarget)
	BneUn    = op1(0x40, "bne.un", InlineBrTarget)
	BgeUn    = op1(0x41, "bge.un", InlineBrTarget)
	BgtUn    = op1(0x42, "bgt.un", InlineBrTarget)
	BleUn    = op1(0x43, "ble.un", InlineBrTarget)
	BltUn    = op1(0x44, "blt.un", InlineBrTarget)
	Switch   = op1(0x45, "switch", InlineSwitch)
	LdindI1  = op1(0x46, "ldind.i1", InlineNone)
	LdindU1  = op1(0x47, "ldind.u1", InlineNone)
	LdindI2  = op1(0x48, "ldind.i2", InlineNone)
	LdindU2  = op1(0x49, "ldind.u2", InlineNone)
	LdindI4  = op1(0x4A, "ldind.i4", InlineNone)
	LdindU4  = op1(0x4B, "ldind.u4", InlineNone)
	LdindI8  = op1(0x4C, "ldind.i8", InlineNone)
	LdindI   = op1(0x4D, "ldind.i", InlineNone)
	LdindR4  = op1(0x4E, "ldind.r4", InlineNone)
	LdindR8  = op1(0x4F, "ldind.r8", InlineNone)
	LdindRef = op1(0x50, "ldind.ref", InlineNone)
	StindRef = op1(0x51, "stind.ref", InlineNone)
	StindI1  = op1(0x52, "stind.i1", InlineNone)
	StindI2  = op1(0x53, "stind.i2", InlineNone)
	StindI4  = op1(0x54, "stind.i4", InlineNone)
	StindI8  = op1(0x55, "stind.i8", InlineNone)
	StindR4  = op1(0x56, "stind.r4", InlineNone)
	StindR8  = op1(0x57, "stind.r8", InlineNone)
	Add      = op1(0x58, "add", InlineNone)
	Sub      = op1(0x59, "sub", InlineNone)
	Mul      = op1(0x5A, "mul", InlineNone)
	Div      = op1(0x5B, "div", InlineNone)
	DivUn    = op1(0x5C, "div.un", InlineNone)
	Rem      = op1(0x5D, "rem", InlineNone)
	RemUn    = op1(0x5E, "rem.un", InlineNone)
	And      = op1(0x5F, "and", InlineNone)
	Or       = op1(0x60, "or", InlineNone)
	Xor      = op1(0x61, "xor", InlineNone)
	Shl      = op1(0x62, "shl", InlineNone)
	Shr      = op1(0x63, "shr", InlineNone)
	ShrUn    = op1(0x64, "shr.un", InlineNone)
	Neg      = op1(0x65, "neg", InlineNone)
	Not      = op1(0x66, "not", InlineNone)
	ConvI1   = op1(0x67, "conv.i1", InlineNone)
	ConvI2   = op1(0x68, "conv.i2", InlineNone)
	ConvI4   = op1(0x69, "conv.i4", InlineNone)
	ConvI8   = op1(0x6A, "conv.i8", InlineNone)
	ConvR4   = op1(0x6B, "conv.r4", InlineNone)
	ConvR8   = op1(0x6C, "conv.r8", InlineNone)
	ConvU4   = op1(0x6D, "conv.u4", InlineNone)
	ConvU8   = op1(0x6E, "conv.u8", InlineNone)
	Callvirt = op1(0x6F, "callvirt", InlineMethod)
	Cpobj    = op1(0x70, "cpobj", InlineType)
	Ldobj    = op1(0x71, "ldobj", InlineType)
	Ldstr    = op1(0x72, "ldstr", InlineString)
	Newobj   = op1(0x73, "newobj", InlineMethod)

	Castclass = op1(0x74, "castclass", InlineType)
	Isinst    = op1(0x75, "isinst", InlineType)
	ConvRUn   = op1(0x76, "conv.r.un", InlineNone)
	Unbox     = op1(0x79, "unbox", InlineType)
	Throw     = op1(0x7A, "throw", InlineNone)
	Ldfld     = op1(0x7B, "ldfld", InlineField)
	Ldflda    = op1(0x7C, "ldflda", InlineField)
	Stfld     = op1(0x7D, "stfld", InlineField)
	Ldsfld    = op1(0x7E, "ldsfld", InlineField)
	Ldsflda   = op1(0x7F, "ldsflda", InlineField)
	Stsfld    = op1(0x80, "stsfld", InlineField)
	Stobj     = op1(0x81, "stobj", InlineType)

	ConvOvfI1Un = op1(0x82, "conv.ovf.i1.un", InlineNone)
	ConvOvfI2Un = op1(0x83, "conv.ovf.i2.un", InlineNone)
	ConvOvfI4Un = op1(0x84, "conv.ovf.i4.un", InlineNone)
	ConvOvfI8Un = op1(0x85, "conv.ovf.i8.un", InlineNone)
	ConvOvfU1Un = op1(0x86, "conv.ovf.u1.un", InlineNone)
	ConvOvfU2Un = op1(0x87, "conv.ovf.u2.un", InlineNone)
	ConvOvfU4Un = op1(0x88, "conv.ovf.u4.un", InlineNone)
	ConvOvfU8Un = op1(0x89, "conv.ovf.u8.un", InlineNone)
	ConvOvfIUn  = op1(0x8A, "conv.ovf.i.un", InlineNone)
	ConvOvfUUn  = op1(0x8B, "conv.ovf.u.un", InlineNone)

	Box       = op1(0x8C, "box", InlineType)
	Newarr    = op1(0x8D, "newarr", InlineType)
	Ldlen     = op1(0x8E, "ldlen", InlineNone)
	Ldelema   = op1(0x8F, "ldelema", InlineType)
	LdelemI1  = op1(0x90, "ldelem.i1", InlineNone)
	LdelemU1  = op1(0x91, "ldelem.u1", InlineNone)
	LdelemI2  = op1(0x92, "ldelem.i2", InlineNone)
	LdelemU2  = op1(0x93, "ldelem.u2", InlineNone)
	LdelemI4  = op1(0x94, "ldelem.i4", InlineNone)
	LdelemU4  = op1(0x95, "ldelem.u4", InlineNone)
	LdelemI8  = op1(0x96, "ldelem.i8", InlineNone)
	LdelemI   = op1(0x97, "ldelem.i", InlineNone)
	LdelemR4  = op1(0x98, "ldelem.r4", InlineNone)
	LdelemR8  = op1(0x99, "ldelem.r8", InlineNone)
	LdelemRef = op1(0x9A, "ldelem.ref", InlineNone)
	StelemI   = op1(0x9B, "stelem.i", InlineNone)
	StelemI1  = op1(0x9C, "stelem.i1", InlineNone)
	StelemI2  = op1(0x9D, "stelem.i2", InlineNone)
	StelemI4  = op1(0x9E, "stelem.i4", InlineNone)
	StelemI8  = op1(0x9F, "stelem.i8", InlineNone)
	StelemR4  = op1(0xA0, "stelem.r4", InlineNone)
	StelemR8  = op1(0xA1, "stelem.r8", InlineNone)
	StelemRef = op1(0xA2, "stelem.ref", InlineNone)
	Ldelem    = op1(0xA3, "ldelem", InlineType)
	Stelem    = op1(0xA4, "stelem", InlineType)
	UnboxAny  = op1(0xA5, "unbox.any", InlineType)

	ConvOvfI1 = op1(0xB3, "conv.ovf.i1", InlineNone)
	ConvOvfU1 = op1(0xB4, "conv.ovf.u1", InlineNone)
	ConvOvfI2 = op1(0xB5, "conv.ovf.i2", InlineNone)
	ConvOvfU2 = op1(0xB6, "conv.ovf.u2", InlineNone)
	ConvOvfI4 = op1(0xB7, "conv.ovf.i4", InlineNone)
	ConvOvfU4 = op1(0xB8, "conv.ovf.u4", InlineNone)
	ConvOvfI8 = op1(0xB9, "conv.ovf.i8", InlineNone)
	ConvOvfU8 = op1(0xBA, "conv.ovf.u8", InlineNone)

	Refanyval  = op1(0xC2, "refanyval", InlineType)
	Ckfinite   = op1(0xC3, "ckfinite", InlineNone)
	Mkrefany   = op1(0xC6, "mkrefany", InlineType)
	Ldtoken    = op1(0xD0, "ldtoken", InlineTok)
	ConvU2     = op1(0xD1, "conv.u2", InlineNone)
	ConvU1     = op1(0xD2, "conv.u1", InlineNone)
	ConvI      = op1(0xD3, "conv.i", InlineNone)
	ConvOvfI   = op1(0xD4, "conv.ovf.i", InlineNone)
	ConvOvfU   = op1(0xD5, "conv.ovf.u", InlineNone)
	AddOvf     = op1(0xD6, "add.ovf", InlineNone)
	AddOvfUn   = op1(0xD7, "add.ovf.un", InlineNone)
	MulOvf     = op1(0xD8, "mul.ovf", InlineNone)
	MulOvfUn   = op1(0xD9, "mul.ovf.un", InlineNone)
	SubOvf     = op1(0xDA, "sub.ovf", InlineNone)
	SubOvfUn   = op1(0xDB, "sub.ovf.un", InlineNone)
	Endfinally = op1(0xDC, "endfinally", InlineNone)
	Leave      = op1(0xDD, "leave", InlineBrTarget)
	LeaveS     = op1(0xDE, "leave.s", ShortInlineBrTarget)
	StindI     = op1(0xDF, "stind.i", InlineNone)
	ConvU      = op1(0xE0, "conv.u", InlineNone)
)

// Two-byte (0xFE-prefixed) opcode space.
var (
	Arglist     = op2(0x00, "arglist", InlineNone)
	Ceq         = op2(0x01, "ceq", InlineNone)
	Cgt         = op2(0x02, "cgt", InlineNone)
	CgtUn       = op2(0x03, "cgt.un", InlineNone)
	Clt         = op2(0x04, "clt", InlineNone)
	CltUn       = op2(0x05, "clt.un", InlineNone)
	Ldftn       = op2(0x06, "ldftn", InlineMethod)
	Ldvirtftn   = op2(0x07, "ldvirtftn", InlineMethod)
	Ldarg       = op2(0x09, "ldarg", InlineVar)
	Ldarga      = op2(0x0A, "ldarga", InlineVar)
	Starg       = op2(0x0B, "starg", InlineVar)
	Ldloc       = op2(0x0C, "ldloc", InlineVar)
	Ldloca      = op2(0x0D, "ldloca", InlineVar)
	Stloc       = op2(0x0E, "stloc", InlineVar)
	Localloc    = op2(0x0F, "localloc", InlineNone)
	Endfilter   = op2(0x11, "endfilter", InlineNone)
	Unaligned   = op2(0x12, "unaligned.", ShortInlineI)
	Volatile    = op2(0x13, "volatile.", InlineNone)
	Tail        = op2(0x14, "tail.", InlineNone)
	Initobj     = op2(0x15, "initobj", InlineType)
	Constrained = op2(0x16, "constrained.", InlineType)
	Cpblk       = op2(0x17, "cpblk", InlineNone)
	Initblk     = op2(0x18, "initblk", InlineNone)
	NoPrefix    = op2(0x19, "no.", ShortInlineI)
	Rethrow     = op2(0x1A, "rethrow", InlineNone)
	Sizeof      = op2(0x1C, "sizeof", InlineType)
	Refanytype  = op2(0x1D, "refanytype", InlineNone)
	Readonly    = op2(0x1E, "readonly.", InlineNone)
)

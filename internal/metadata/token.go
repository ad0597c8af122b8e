// Package metadata models a loaded assembly the way the scanner and the
// injector need to see one: enumerable types, method parameter signatures,
// raw CIL method bodies, and 32-bit token resolution against the declaring
// module. It also carries the guest runtime half of the model: prepared
// entry points, method descriptors, and per-type virtual slot tables.
package metadata

import "fmt"

// Token table kinds, stored in the high byte of a 32-bit token. The row
// id (RID) in the low 24 bits is 1-based; RID 0 is the nil token.
const (
	TokenKindType   = 0x02
	TokenKindField  = 0x04
	TokenKindMethod = 0x06
	TokenKindString = 0x70
)

// MakeToken builds a token from a table kind and a 1-based row id.
func MakeToken(kind uint8, rid uint32) uint32 {
	return uint32(kind)<<24 | rid&0xFFFFFF
}

// TokenKind extracts the table kind byte.
func TokenKind(token uint32) uint8 { return uint8(token >> 24) }

// TokenRID extracts the 1-based row id.
func TokenRID(token uint32) uint32 { return token & 0xFFFFFF }

// FormatToken renders a token the way metadata dumps usually do.
func FormatToken(token uint32) string {
	return fmt.Sprintf("0x%08x", token)
}

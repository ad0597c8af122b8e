package scan

import (
	"rekindle/internal/cil"
	"rekindle/internal/metadata"
)

// populateLocator extracts the unit's resource locator from a populate
// method body. The generated prologue puts the ldstr at a fixed offset,
// so that is tried first; when the byte there is not an ldstr the whole
// body is scanned for the first one. Out-of-range offsets and
// unresolvable tokens yield an empty locator, never an error.
func (s *Scanner) populateLocator(populate *metadata.MethodDef) string {
	body := populate.Body
	if len(body) == 0 || populate.Decl == nil || populate.Decl.Asm == nil {
		return ""
	}
	mod := populate.Decl.Asm.Module()

	if populateLocatorOffset < len(body) {
		if loc, ok := ldstrAt(body[populateLocatorOffset:], mod); ok {
			return loc
		}
	}

	r := cil.NewReader(body)
	for r.Next() {
		if r.Op().Value != cil.Ldstr.Value {
			continue
		}
		loc, err := r.ResolveString(mod)
		if err != nil {
			return ""
		}
		return loc
	}
	return ""
}

// ldstrAt decodes a single instruction at the start of buf and returns
// its string operand if, and only if, it is an ldstr with a resolvable
// token.
func ldstrAt(buf []byte, mod *metadata.Module) (string, bool) {
	r := cil.NewReader(buf)
	if !r.Next() || r.Op().Value != cil.Ldstr.Value {
		return "", false
	}
	loc, err := r.ResolveString(mod)
	if err != nil {
		return "", false
	}
	return loc, true
}

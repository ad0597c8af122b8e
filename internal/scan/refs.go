package scan

import (
	"rekindle/internal/cil"
	"rekindle/internal/metadata"
)

// scanNamedRefs walks the unit type's initialize method for the
// generated named-child wiring: a name literal load, a call to the
// name-lookup method, and a store into the cache field. The cache field
// must be an instance field on a type the unit is assignable to;
// anything else drops the triple.
func (s *Scanner) scanNamedRefs(unitType *metadata.TypeDef) []NamedRef {
	init := unitType.Method(initializeMethodName)
	if init == nil || len(init.Body) == 0 || unitType.Asm == nil {
		return nil
	}
	mod := unitType.Asm.Module()

	var refs []NamedRef
	var name string
	var lookupType *metadata.TypeDef
	var haveName, haveLookup bool

	r := cil.NewReader(init.Body)
	for r.Next() {
		switch r.Op().Value {
		case cil.Ldstr.Value:
			str, err := r.ResolveString(mod)
			if err != nil {
				continue
			}
			name, haveName = str, true
			haveLookup = false

		case cil.Call.Value, cil.Callvirt.Value:
			mh, err := r.ResolveMethod(mod)
			if err != nil {
				haveLookup = false
				continue
			}
			target, ok := mh.(*metadata.MethodDef)
			if ok && haveName && target.Name == nameLookupMethodName {
				lookupType = target.Return
				haveLookup = true
			} else {
				haveLookup = false
			}

		case cil.Stfld.Value:
			if !haveName || !haveLookup {
				continue
			}
			fh, err := r.ResolveField(mod)
			if err != nil {
				continue
			}
			field, ok := fh.(*metadata.FieldDef)
			if !ok || field.Static || field.Decl == nil || !field.Decl.AssignableFrom(unitType) {
				s.log.Debugf("named ref %q on %s stored in unusable field, dropping", name, unitType.FullName())
			} else {
				typ := lookupType
				if typ == nil {
					typ = field.Type
				}
				refs = append(refs, NamedRef{Name: name, Type: typ, Field: field})
			}
			haveName, haveLookup = false, false

		case cil.Ret.Value:
			haveName, haveLookup = false, false
		}
	}
	return refs
}

// refreshMethods collects the zero-argument instance methods the user
// marked with the refresh attribute.
func refreshMethods(t *metadata.TypeDef) []*metadata.MethodDef {
	var out []*metadata.MethodDef
	for _, m := range t.Methods {
		if !m.Static && len(m.Params) == 0 && m.HasAttr(refreshAttrName) {
			out = append(out, m)
		}
	}
	return out
}

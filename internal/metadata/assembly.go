package metadata

import (
	"errors"
	"fmt"
	"reflect"

	"rekindle/internal/cil"
)

// ErrBadToken is wrapped by every failed token resolution.
var ErrBadToken = errors.New("metadata: unresolvable token")

// Assembly is one loaded assembly: a name, a set of types, and the
// manifest module whose tables resolve the tokens embedded in its method
// bodies.
type Assembly struct {
	Name   string
	Domain *Domain
	Types  []*TypeDef

	module *Module
}

// NewAssembly creates an empty assembly and registers it with the domain.
func (d *Domain) NewAssembly(name string) *Assembly {
	a := &Assembly{Name: name, Domain: d}
	a.module = &Module{asm: a}
	d.mu.Lock()
	d.asms = append(d.asms, a)
	d.mu.Unlock()
	return a
}

// Module returns the assembly's manifest module.
func (a *Assembly) Module() *Module { return a.module }

// Type returns the type with the given full name, or nil.
func (a *Assembly) Type(fullName string) *TypeDef {
	for _, t := range a.Types {
		if t.FullName() == fullName {
			return t
		}
	}
	return nil
}

// NewType declares a class type. A nil base defaults to System.Object.
func (a *Assembly) NewType(namespace, name string, base *TypeDef) *TypeDef {
	if base == nil {
		base = TypeObject
	}
	t := &TypeDef{
		Namespace: namespace,
		Name:      name,
		Kind:      KindClass,
		Base:      base,
		Asm:       a,
		Go:        instanceGoType,
	}
	t.token = a.module.typeToken(t)
	a.Types = append(a.Types, t)
	return t
}

// NewInterface declares an interface type.
func (a *Assembly) NewInterface(namespace, name string) *TypeDef {
	t := &TypeDef{
		Namespace: namespace,
		Name:      name,
		Kind:      KindInterface,
		Asm:       a,
		Go:        anyGoType,
	}
	t.token = a.module.typeToken(t)
	a.Types = append(a.Types, t)
	return t
}

// MethodSpec declares a method's signature.
type MethodSpec struct {
	Name    string
	Static  bool
	Virtual bool
	Params  []ParamDef
	Return  *TypeDef // nil means void
	Body    []byte
	Attrs   []string
	Impl    Impl
}

// NewMethod declares a method on the type and assigns its token. Virtual
// methods receive the next free slot of the declaring type.
func (t *TypeDef) NewMethod(spec MethodSpec) *MethodDef {
	ret := spec.Return
	if ret == nil {
		ret = TypeVoid
	}
	m := &MethodDef{
		Name:    spec.Name,
		Decl:    t,
		Static:  spec.Static,
		Virtual: spec.Virtual,
		Params:  spec.Params,
		Return:  ret,
		Body:    spec.Body,
		Attrs:   spec.Attrs,
		impl:    spec.Impl,
		slot:    -1,
	}
	if spec.Virtual {
		m.slot = 0
		for _, prev := range t.Methods {
			if prev.Virtual {
				m.slot++
			}
		}
	}
	if t.Asm != nil {
		m.token = t.Asm.module.methodToken(m)
	}
	t.Methods = append(t.Methods, m)
	return m
}

// NewField declares a field on the type and assigns its token.
func (t *TypeDef) NewField(name string, typ *TypeDef, static bool) *FieldDef {
	f := &FieldDef{Name: name, Decl: t, Type: typ, Static: static}
	if t.Asm != nil {
		f.token = t.Asm.module.fieldToken(f)
	}
	t.Fields = append(t.Fields, f)
	return f
}

// Module holds the token tables of one assembly. Row ids are 1-based
// indexes into the backing slices; the tables may reference members
// declared by other assemblies (member refs), which is how call sites to
// shared builtins such as String.Equals are encoded.
type Module struct {
	asm     *Assembly
	strings []string
	methods []*MethodDef
	fields  []*FieldDef
	types   []*TypeDef
}

// Assembly returns the module's declaring assembly.
func (mod *Module) Assembly() *Assembly { return mod.asm }

// StringToken interns a user string and returns its token.
func (mod *Module) StringToken(s string) uint32 {
	for i, have := range mod.strings {
		if have == s {
			return MakeToken(TokenKindString, uint32(i+1))
		}
	}
	mod.strings = append(mod.strings, s)
	return MakeToken(TokenKindString, uint32(len(mod.strings)))
}

// MethodToken interns a method reference and returns its token.
func (mod *Module) MethodToken(m *MethodDef) uint32 {
	for i, have := range mod.methods {
		if have == m {
			return MakeToken(TokenKindMethod, uint32(i+1))
		}
	}
	mod.methods = append(mod.methods, m)
	return MakeToken(TokenKindMethod, uint32(len(mod.methods)))
}

// FieldToken interns a field reference and returns its token.
func (mod *Module) FieldToken(f *FieldDef) uint32 {
	for i, have := range mod.fields {
		if have == f {
			return MakeToken(TokenKindField, uint32(i+1))
		}
	}
	mod.fields = append(mod.fields, f)
	return MakeToken(TokenKindField, uint32(len(mod.fields)))
}

// TypeToken interns a type reference and returns its token.
func (mod *Module) TypeToken(t *TypeDef) uint32 {
	return mod.typeToken(t)
}

func (mod *Module) typeToken(t *TypeDef) uint32 {
	for i, have := range mod.types {
		if have == t {
			return MakeToken(TokenKindType, uint32(i+1))
		}
	}
	mod.types = append(mod.types, t)
	return MakeToken(TokenKindType, uint32(len(mod.types)))
}

// methodToken and fieldToken mirror the public interners for builder use.
func (mod *Module) methodToken(m *MethodDef) uint32 { return mod.MethodToken(m) }
func (mod *Module) fieldToken(f *FieldDef) uint32   { return mod.FieldToken(f) }

func (mod *Module) rid(token uint32, kind uint8, rows int) (int, error) {
	if TokenKind(token) != kind {
		return 0, fmt.Errorf("%w: %s has kind 0x%02x, want 0x%02x",
			ErrBadToken, FormatToken(token), TokenKind(token), kind)
	}
	rid := int(TokenRID(token))
	if rid < 1 || rid > rows {
		return 0, fmt.Errorf("%w: %s row out of range (1..%d)",
			ErrBadToken, FormatToken(token), rows)
	}
	return rid, nil
}

// ResolveString implements cil.TokenResolver.
func (mod *Module) ResolveString(token uint32) (string, error) {
	rid, err := mod.rid(token, TokenKindString, len(mod.strings))
	if err != nil {
		return "", err
	}
	return mod.strings[rid-1], nil
}

// ResolveMethod implements cil.TokenResolver.
func (mod *Module) ResolveMethod(token uint32) (cil.MethodHandle, error) {
	rid, err := mod.rid(token, TokenKindMethod, len(mod.methods))
	if err != nil {
		return nil, err
	}
	return mod.methods[rid-1], nil
}

// ResolveField implements cil.TokenResolver.
func (mod *Module) ResolveField(token uint32) (cil.FieldHandle, error) {
	rid, err := mod.rid(token, TokenKindField, len(mod.fields))
	if err != nil {
		return nil, err
	}
	return mod.fields[rid-1], nil
}

// ResolveType implements cil.TokenResolver.
func (mod *Module) ResolveType(token uint32) (cil.TypeHandle, error) {
	rid, err := mod.rid(token, TokenKindType, len(mod.types))
	if err != nil {
		return nil, err
	}
	return mod.types[rid-1], nil
}

// SetGoType overrides the Go representation used when marshalling values
// of this type across the hook boundary.
func (t *TypeDef) SetGoType(rt reflect.Type) { t.Go = rt }

package metadata

import "reflect"

// TypeKind distinguishes the few type shapes the model needs.
type TypeKind uint8

const (
	KindClass TypeKind = iota
	KindInterface
	KindPrimitive
	KindVoid
)

// TypeDef is one type of a loaded assembly. Builtin types (System.Object,
// System.String, ...) live in a shared pseudo-assembly and may be
// referenced from any module.
type TypeDef struct {
	Namespace string
	Name      string
	Kind      TypeKind
	Base      *TypeDef
	Ifaces    []*TypeDef
	Asm       *Assembly

	// Go is the runtime representation used when marshalling values in
	// and out of implementations. Class types default to *Instance.
	Go reflect.Type

	Methods []*MethodDef
	Fields  []*FieldDef

	token uint32
	table *methodTable
}

// FullName returns "Namespace.Name", or just Name for the empty namespace.
func (t *TypeDef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// TypeName implements cil.TypeHandle.
func (t *TypeDef) TypeName() string { return t.FullName() }

// Token returns the type's metadata token within its declaring module.
func (t *TypeDef) Token() uint32 { return t.token }

// AssignableFrom reports whether a value of type u can be bound to a
// location of type t: identity, base-chain walk, interface implementation,
// and Object as the top type.
func (t *TypeDef) AssignableFrom(u *TypeDef) bool {
	if t == nil || u == nil {
		return false
	}
	if t == TypeObject && u.Kind != KindVoid {
		return true
	}
	for c := u; c != nil; c = c.Base {
		if c == t {
			return true
		}
		for _, iface := range c.Ifaces {
			if iface == t {
				return true
			}
		}
	}
	return false
}

// Method returns the first declared method with the given name, or nil.
func (t *TypeDef) Method(name string) *MethodDef {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Field returns the declared field with the given name, or nil.
func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldDef is one field of a type. Static fields carry their value on the
// def itself; instance fields are stored per Instance.
type FieldDef struct {
	Name   string
	Decl   *TypeDef
	Type   *TypeDef
	Static bool

	token     uint32
	staticVal any
}

// FieldName implements cil.FieldHandle.
func (f *FieldDef) FieldName() string { return f.Name }

// Token returns the field's metadata token within its declaring module.
func (f *FieldDef) Token() uint32 { return f.token }

// StaticValue returns the current value of a static field.
func (f *FieldDef) StaticValue() any { return f.staticVal }

// SetStaticValue stores a value into a static field.
func (f *FieldDef) SetStaticValue(v any) { f.staticVal = v }

// ParamDef is one parameter of a method signature. The receiver is not
// part of the parameter list.
type ParamDef struct {
	Name string
	Type *TypeDef
}

// Instance is a runtime object of a class TypeDef.
type Instance struct {
	typ    *TypeDef
	fields map[*FieldDef]any
}

// NewInstance allocates an instance with empty field storage.
func NewInstance(t *TypeDef) *Instance {
	return &Instance{typ: t, fields: make(map[*FieldDef]any)}
}

// Type returns the instance's runtime type.
func (i *Instance) Type() *TypeDef { return i.typ }

// GetField reads an instance field; unset fields read as nil.
func (i *Instance) GetField(f *FieldDef) any { return i.fields[f] }

// SetField writes an instance field.
func (i *Instance) SetField(f *FieldDef, v any) { i.fields[f] = v }

// instanceGoType is the Go representation of class-kind values.
var instanceGoType = reflect.TypeOf((*Instance)(nil))

// anyGoType is the Go representation of Object and interface values.
var anyGoType = reflect.TypeOf((*any)(nil)).Elem()

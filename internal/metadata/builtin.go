package metadata

import "reflect"

// Shared builtin types. They live in a domain-less pseudo-assembly and
// may be referenced from any module's tables, the way member refs point
// into a shared corlib.
var (
	BuiltinAssembly *Assembly

	TypeObject          *TypeDef
	TypeVoid            *TypeDef
	TypeString          *TypeDef
	TypeBool            *TypeDef
	TypeInt32           *TypeDef
	TypeFloat64         *TypeDef
	TypeServiceProvider *TypeDef

	// StringEquals is the platform string-equality comparison the
	// generated dispatcher calls between a candidate locator and the
	// requested one.
	StringEquals *MethodDef
)

func builtinType(name string, kind TypeKind, base *TypeDef, goType reflect.Type) *TypeDef {
	t := &TypeDef{
		Namespace: "System",
		Name:      name,
		Kind:      kind,
		Base:      base,
		Asm:       BuiltinAssembly,
		Go:        goType,
	}
	t.token = BuiltinAssembly.module.typeToken(t)
	BuiltinAssembly.Types = append(BuiltinAssembly.Types, t)
	return t
}

func init() {
	BuiltinAssembly = &Assembly{Name: "System.Runtime"}
	BuiltinAssembly.module = &Module{asm: BuiltinAssembly}

	TypeObject = builtinType("Object", KindClass, nil, anyGoType)
	TypeVoid = builtinType("Void", KindVoid, nil, nil)
	TypeString = builtinType("String", KindPrimitive, TypeObject, reflect.TypeOf(""))
	TypeBool = builtinType("Boolean", KindPrimitive, TypeObject, reflect.TypeOf(false))
	TypeInt32 = builtinType("Int32", KindPrimitive, TypeObject, reflect.TypeOf(int32(0)))
	TypeFloat64 = builtinType("Double", KindPrimitive, TypeObject, reflect.TypeOf(float64(0)))
	TypeServiceProvider = builtinType("IServiceProvider", KindInterface, nil, anyGoType)

	StringEquals = TypeString.NewMethod(MethodSpec{
		Name:   "Equals",
		Static: true,
		Params: []ParamDef{
			{Name: "a", Type: TypeString},
			{Name: "b", Type: TypeString},
		},
		Return: TypeBool,
		Impl: func(_ any, args []any) any {
			a, _ := args[0].(string)
			b, _ := args[1].(string)
			return a == b
		},
	})
}

package hook

import (
	"reflect"

	"rekindle/internal/metadata"
)

// synthesize builds the wrapper implementation from a classification:
// marshal the callback's parameters, invoke it, then either
// short-circuit with the result-slot local or fall through to the
// original. The closure is the method body; no code is emitted.
func synthesize(target *metadata.MethodDef, cls *classification, orig metadata.Impl) metadata.Impl {
	return func(recv any, args []any) any {
		in := make([]reflect.Value, len(cls.binds))
		var slot reflect.Value
		for i, b := range cls.binds {
			switch b.kind {
			case bindResultSlot:
				slot = reflect.New(b.typ.Elem())
				in[i] = slot
			case bindReceiver:
				in[i] = coerce(recv, b.typ)
			case bindMember:
				in[i] = reflect.ValueOf(target)
			case bindMemberName:
				in[i] = reflect.ValueOf(target.Name).Convert(b.typ)
			default:
				var v any
				if b.arg < len(args) {
					v = args[b.arg]
				}
				in[i] = coerce(v, b.typ)
			}
		}

		out := cls.fn.Call(in)

		if cls.conditional && out[0].Bool() {
			// Short-circuit: the result-slot local is the return value
			// when one was bound; otherwise the default local.
			if slot.IsValid() && goReturnType(target) != nil {
				return slot.Elem().Interface()
			}
			return nil
		}
		return orig(recv, args)
	}
}

// coerce adapts a boxed value to a reflect parameter, substituting the
// zero value for nil.
func coerce(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != t && rv.Type().AssignableTo(t) {
		converted := reflect.New(t).Elem()
		converted.Set(rv)
		return converted
	}
	return rv
}

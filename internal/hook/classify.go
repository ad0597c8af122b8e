package hook

import (
	"fmt"
	"reflect"

	"rekindle/internal/metadata"
)

// bindKind is how one callback parameter gets its value at call time.
type bindKind int

const (
	bindArg bindKind = iota
	bindResultSlot
	bindReceiver
	bindMember
	bindMemberName
)

type paramBind struct {
	kind bindKind
	typ  reflect.Type
	arg  int // original argument index for bindArg
}

// classification is the per-callback synthesis plan, computed once at
// injection time.
type classification struct {
	fn          reflect.Value
	binds       []paramBind
	conditional bool // bool-returning callback drives short-circuit
	resultSlot  int  // bind index of the result slot, -1 if unbound
}

// classify validates the callback against the target's shape and
// resolves every parameter. Unmarked parameters consume the remaining
// original parameters left to right by assignability; running out is
// ErrNoMatch. All failures happen here, before any patching.
func classify(target *metadata.MethodDef, cb Callback) (*classification, error) {
	fn := reflect.ValueOf(cb.Fn)
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: callback is %s, not a func", ErrBadCallback, ft.Kind())
	}
	if len(cb.Markers) > ft.NumIn() {
		return nil, fmt.Errorf("%w: %d markers for %d parameters", ErrBadCallback, len(cb.Markers), ft.NumIn())
	}

	cls := &classification{
		fn:         fn,
		binds:      make([]paramBind, ft.NumIn()),
		resultSlot: -1,
	}
	if ft.NumOut() == 1 && ft.Out(0).Kind() == reflect.Bool {
		cls.conditional = true
	}

	nextArg := 0
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		marker := MarkerNone
		if i < len(cb.Markers) {
			marker = cb.Markers[i]
		}
		switch marker {
		case MarkerResultSlot:
			if pt.Kind() != reflect.Pointer {
				return nil, fmt.Errorf("%w: result-slot parameter %d is %s, want pointer", ErrBadCallback, i, pt)
			}
			if rt := goReturnType(target); rt != nil && !pt.Elem().AssignableTo(rt) {
				return nil, fmt.Errorf("%w: result slot holds %s, target returns %s", ErrBadCallback, pt.Elem(), rt)
			}
			if cls.resultSlot >= 0 {
				return nil, fmt.Errorf("%w: more than one result-slot parameter", ErrBadCallback)
			}
			cls.resultSlot = i
			cls.binds[i] = paramBind{kind: bindResultSlot, typ: pt}

		case MarkerCallerInstance:
			if target.Static {
				return nil, fmt.Errorf("%w: caller-instance marker on a static target", ErrBadCallback)
			}
			cls.binds[i] = paramBind{kind: bindReceiver, typ: pt}

		case MarkerCallerMember:
			if !reflect.TypeOf(target).AssignableTo(pt) {
				return nil, fmt.Errorf("%w: caller-member parameter %d is %s", ErrBadCallback, i, pt)
			}
			cls.binds[i] = paramBind{kind: bindMember, typ: pt}

		case MarkerCallerMemberName:
			if pt.Kind() != reflect.String {
				return nil, fmt.Errorf("%w: caller-member-name parameter %d is %s, want string", ErrBadCallback, i, pt)
			}
			cls.binds[i] = paramBind{kind: bindMemberName, typ: pt}

		default:
			idx, ok := matchPositional(target, pt, &nextArg)
			if !ok {
				return nil, fmt.Errorf("%w: callback parameter %d (%s) against %s", ErrNoMatch, i, pt, target.FullName())
			}
			cls.binds[i] = paramBind{kind: bindArg, typ: pt, arg: idx}
		}
	}
	return cls, nil
}

// matchPositional consumes the next original parameter compatible with
// the callback parameter type, starting where the previous unmarked
// parameter left off.
func matchPositional(target *metadata.MethodDef, pt reflect.Type, nextArg *int) (int, bool) {
	for i := *nextArg; i < len(target.Params); i++ {
		if goTypeCompatible(target.Params[i].Type, pt) {
			*nextArg = i + 1
			return i, true
		}
	}
	return 0, false
}

// goTypeCompatible reports whether a modelled parameter type can feed a
// callback parameter of the given Go type.
func goTypeCompatible(pt *metadata.TypeDef, to reflect.Type) bool {
	if to.Kind() == reflect.Interface && to.NumMethod() == 0 {
		return true
	}
	if pt == nil || pt.Go == nil {
		return false
	}
	return pt.Go.AssignableTo(to)
}

// goReturnType resolves the target's return as a Go type, nil for void
// or unmodelled returns.
func goReturnType(target *metadata.MethodDef) reflect.Type {
	if target.Return == nil || target.Return.Kind == metadata.KindVoid {
		return nil
	}
	return target.Return.Go
}

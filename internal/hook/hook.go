// Package hook installs rich callbacks over existing methods. A
// callback can ask for the original call's receiver, the target
// method's metadata or name, or a result slot that short-circuits the
// call; remaining parameters are fed positionally from the original
// arguments. The callback's classification is computed once, the method
// body is synthesized as a closure over the canonical calling
// convention, and installation goes through the method injector.
package hook

import (
	"errors"
	"fmt"

	"rekindle/internal/inject"
	"rekindle/internal/metadata"
)

var (
	// ErrBadCallback means the callback value or a marker cannot apply
	// to the target's shape. Raised before any patching.
	ErrBadCallback = errors.New("hook: callback incompatible with target")

	// ErrNoMatch means an unmarked callback parameter had no remaining
	// compatible original parameter to bind to.
	ErrNoMatch = errors.New("hook: no positional parameter match")
)

// Marker classifies one callback parameter.
type Marker int

const (
	// MarkerNone binds positionally: the next unconsumed original
	// argument whose type is compatible.
	MarkerNone Marker = iota

	// MarkerResultSlot binds a pointer parameter to the synthesized
	// return local. Writing through it and returning true makes the
	// written value the call's result.
	MarkerResultSlot

	// MarkerCallerInstance binds the original call's receiver.
	MarkerCallerInstance

	// MarkerCallerMember binds the target method's metadata handle.
	MarkerCallerMember

	// MarkerCallerMemberName binds the target method's name.
	MarkerCallerMemberName
)

func (m Marker) String() string {
	switch m {
	case MarkerResultSlot:
		return "result-slot"
	case MarkerCallerInstance:
		return "caller-instance"
	case MarkerCallerMember:
		return "caller-member"
	case MarkerCallerMemberName:
		return "caller-member-name"
	default:
		return "none"
	}
}

// Callback pairs a Go function with per-parameter markers. Markers may
// be shorter than the parameter list; the tail defaults to MarkerNone.
// If the callback returns bool, true short-circuits the target and
// false falls through to the original; any other return value is
// discarded and the original always runs.
type Callback struct {
	Fn      any
	Markers []Marker

	// Asm, when set, names the callback's declaring assembly for the
	// cross-assembly access grant.
	Asm *metadata.Assembly
}

// Handle tears down one installed callback: the synthesized method's
// backing state and the underlying injection.
type Handle struct {
	inner *inject.Handle
}

func (h *Handle) Dispose() error { return h.inner.Dispose() }

// Inject classifies the callback against the target, synthesizes the
// wrapper method, and installs it. Classification failures surface
// before anything is patched.
func Inject(env *inject.Env, target *metadata.MethodDef, cb Callback) (*Handle, error) {
	if target == nil || cb.Fn == nil {
		return nil, fmt.Errorf("%w: nil target or callback", ErrBadCallback)
	}
	cls, err := classify(target, cb)
	if err != nil {
		return nil, err
	}

	grantAccess(target, cb)

	inner, err := env.Inject(target, func(orig metadata.Impl) metadata.Impl {
		return synthesize(target, cls, orig)
	})
	if err != nil {
		return nil, err
	}
	return &Handle{inner: inner}, nil
}

// grantAccess records mutual private-member access between the
// synthesized code's pseudo-assembly and the declaring assemblies
// involved, mirroring what emitted code would need to call non-public
// members.
const dynamicAssemblyName = "Rekindle.Dynamic"

func grantAccess(target *metadata.MethodDef, cb Callback) {
	domain := targetDomain(target)
	if domain == nil {
		return
	}
	grant := func(name string) {
		domain.GrantAccess(dynamicAssemblyName, name)
		domain.GrantAccess(name, dynamicAssemblyName)
	}
	if target.Decl != nil && target.Decl.Asm != nil {
		grant(target.Decl.Asm.Name)
	}
	if cb.Asm != nil {
		grant(cb.Asm.Name)
	}
}

func targetDomain(target *metadata.MethodDef) *metadata.Domain {
	if target.Decl == nil || target.Decl.Asm == nil {
		return nil
	}
	return target.Decl.Asm.Domain
}

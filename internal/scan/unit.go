// Package scan recovers markup-unit metadata from compiled method
// bodies. It walks the generated loader dispatcher's instruction stream
// and pattern-matches the shapes the markup compiler emits: a locator
// string load, a string-equality check, and a call into a build method.
// Nothing here executes guest code; the scanner only reads bodies.
package scan

import (
	"rekindle/internal/metadata"
)

// Generated-name conventions of the markup compiler. The dispatcher
// lives on a well-known type; build and populate entry points pair up
// by prefix, and per-type units use fixed member names.
const (
	dispatcherTypeName   = "CompiledAvaloniaXaml.!XamlLoader"
	dispatcherMethodName = "TryLoad"

	buildPrefix    = "Build:"
	populatePrefix = "Populate:"

	typePopulateName  = "!XamlIlPopulate"
	overrideFieldName = "!XamlIlPopulateOverride"

	initializeMethodName = "InitializeComponent"
	nameLookupMethodName = "FindControl"
	refreshAttrName      = "AvaloniaHotReloadAttribute"
)

// populateLocatorOffset is where the locator's ldstr begins in the
// typical generated populate prologue (two one-byte argument loads
// first). The byte there is checked to actually be an ldstr before the
// fast path is trusted.
const populateLocatorOffset = 2

// NamedRef describes one named child recovered from an initialize
// method: the lookup name, the resolved child type, and the instance
// field caching the lookup result.
type NamedRef struct {
	Name  string
	Type  *metadata.TypeDef
	Field *metadata.FieldDef
}

// Unit is the recovered metadata bundle for one buildable markup unit.
// Immutable after the scan that produced it.
type Unit struct {
	// Locator is the resource URI identifying the unit's markup source.
	Locator string

	// Type is the runtime type the populate method fills.
	Type *metadata.TypeDef

	// Build constructs a fresh instance. Either a generated static
	// build method or the unit type's constructor.
	Build *metadata.MethodDef

	// Populate fills an existing instance with the generated wiring.
	Populate *metadata.MethodDef

	// Override, when non-nil, is the function-valued field consulted
	// before the compiled populate method. Swapping it redirects
	// population without patching code.
	Override *metadata.FieldDef

	// NamedRefs are the cached named-child lookups to invalidate on
	// refresh.
	NamedRefs []NamedRef

	// RefreshMethods are the zero-argument instance methods the user
	// marked for invocation after repopulation.
	RefreshMethods []*metadata.MethodDef
}

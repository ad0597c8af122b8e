package metadata

import (
	"fmt"
	"sync"
)

// Version is a guest runtime version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// AtLeast reports v >= o.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	return v.Minor >= o.Minor
}

// TieredEntryVersion is the first runtime version whose preparation
// primitive stopped pinning final entry points: from here on a prepared
// method may be re-resolved by the tiering compiler unless a debugger is
// attached, which disables tier-up.
var TieredEntryVersion = Version{7, 0}

// Runtime describes the guest runtime hosting the scanned assemblies.
type Runtime struct {
	Version        Version
	TieringEnabled bool

	// DebugProbe overrides debugger detection; nil selects the OS probe.
	DebugProbe func() bool
}

// DebuggerAttached reports whether a debugger (or hot-reload host) is
// attached to the process.
func (r *Runtime) DebuggerAttached() bool {
	if r.DebugProbe != nil {
		return r.DebugProbe()
	}
	return debuggerAttached()
}

// StableEntries reports whether the preparation primitive still has
// pre-tiering semantics: Prepare yields the final entry pointer and
// patching that pointer sticks. True on runtimes before
// TieredEntryVersion, on runtimes with tiering disabled, and on tiering
// runtimes while a debugger is attached.
func (r *Runtime) StableEntries() bool {
	if !r.TieringEnabled {
		return true
	}
	if !r.Version.AtLeast(TieredEntryVersion) {
		return true
	}
	return r.DebuggerAttached()
}

// tierActive reports whether prepared entries may be re-resolved.
func (r *Runtime) tierActive() bool { return !r.StableEntries() }

// Domain owns a set of loaded assemblies and the runtime they run on.
type Domain struct {
	Runtime Runtime

	mu     sync.Mutex
	asms   []*Assembly
	grants map[[2]string]struct{}
}

// NewDomain creates an empty domain on the given runtime.
func NewDomain(rt Runtime) *Domain {
	return &Domain{Runtime: rt, grants: make(map[[2]string]struct{})}
}

// Assemblies returns the loaded assemblies in load order.
func (d *Domain) Assemblies() []*Assembly {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Assembly, len(d.asms))
	copy(out, d.asms)
	return out
}

// Assembly returns the loaded assembly with the given name, or nil.
func (d *Domain) Assembly(name string) *Assembly {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.asms {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// GrantAccess records that code from assembly `from` may call non-public
// members of assembly `to`. Used by the callback injector before it
// installs synthesized bodies.
func (d *Domain) GrantAccess(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grants[[2]string{from, to}] = struct{}{}
}

// HasAccess reports whether an access grant exists.
func (d *Domain) HasAccess(from, to string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.grants[[2]string{from, to}]
	return ok
}

// Package hotreload re-executes recovered build/populate code paths
// when backing markup files change. It consumes the scanner's unit
// descriptors and the injectors; file watching stays behind a boundary
// interface.
package hotreload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"rekindle/internal/metadata"
	"rekindle/internal/scan"
)

// Watcher is the file-watching boundary. Subscribe invokes fn after
// every change to path and returns a cancel function.
type Watcher interface {
	Subscribe(path string, fn func()) (cancel func(), err error)
}

var ErrClosed = errors.New("hotreload: manager closed")

// ControlManager re-populates live instances of scanned units when
// their markup files change. Instances are held weakly: a collected
// control silently drops out of reload.
type ControlManager struct {
	log     commonlog.Logger
	watcher Watcher
	root    string

	mu        sync.Mutex
	closed    bool
	cancels   []func()
	instances *weakAssoc[string, metadata.Instance]
	units     map[string]*scan.Unit
}

func NewControlManager(w Watcher, root string) *ControlManager {
	return &ControlManager{
		log:       commonlog.GetLogger("rekindle.hotreload"),
		watcher:   w,
		root:      root,
		instances: newWeakAssoc[string, metadata.Instance](),
		units:     make(map[string]*scan.Unit),
	}
}

// Register wires a live instance of the unit to its markup file. The
// first registration for a path subscribes to the watcher; later ones
// just rebind the tracked instance.
func (cm *ControlManager) Register(unit *scan.Unit, instance *metadata.Instance) error {
	path, err := ResolvePath(unit.Locator, cm.root)
	if err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return ErrClosed
	}
	_, known := cm.units[path]
	cm.units[path] = unit
	cm.instances.put(path, instance)
	if known {
		return nil
	}

	cancel, err := cm.watcher.Subscribe(path, func() { cm.reload(path) })
	if err != nil {
		delete(cm.units, path)
		cm.instances.remove(path)
		return fmt.Errorf("hotreload: watch %s: %w", path, err)
	}
	cm.cancels = append(cm.cancels, cancel)
	return nil
}

// reload re-runs population for the instance bound to path. Errors are
// warnings; a failed reload never takes the host down.
func (cm *ControlManager) reload(path string) {
	cm.mu.Lock()
	unit := cm.units[path]
	cm.mu.Unlock()
	if unit == nil {
		return
	}
	instance, ok := cm.instances.get(path)
	if !ok {
		cm.log.Debugf("no live instance for %s, skipping reload", path)
		return
	}
	if err := cm.repopulate(unit, instance); err != nil {
		cm.log.Warningf("reload %s: %s", unit.Locator, err.Error())
		return
	}
	cm.refresh(unit, instance)
}

// repopulate prefers the unit's override slot, which redirects
// population without touching compiled code; otherwise it calls the
// compiled populate method directly.
func (cm *ControlManager) repopulate(unit *scan.Unit, instance *metadata.Instance) error {
	if unit.Override != nil {
		if ov, ok := unit.Override.StaticValue().(metadata.Impl); ok && ov != nil {
			ov(nil, []any{nil, instance})
			return nil
		}
	}
	_, err := unit.Populate.Invoke(nil, nil, instance)
	return err
}

// refresh invalidates the named-reference caches and runs the
// user-marked refresh methods.
func (cm *ControlManager) refresh(unit *scan.Unit, instance *metadata.Instance) {
	for _, ref := range unit.NamedRefs {
		instance.SetField(ref.Field, nil)
	}
	for _, m := range unit.RefreshMethods {
		if _, err := m.Invoke(instance); err != nil {
			cm.log.Warningf("refresh %s: %s", m.FullName(), err.Error())
		}
	}
}

// Close cancels every watch subscription. Registered units stay valid
// but no further reloads fire.
func (cm *ControlManager) Close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return
	}
	cm.closed = true
	for _, cancel := range cm.cancels {
		cancel()
	}
	cm.cancels = nil
}

package hotreload

import (
	"path/filepath"
	"runtime"
	"testing"

	"rekindle/internal/inject"
	"rekindle/internal/metadata"
	"rekindle/internal/scan"
)

// fakeWatcher triggers subscriptions on demand.
type fakeWatcher struct {
	subs map[string][]func()
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{subs: make(map[string][]func())}
}

func (w *fakeWatcher) Subscribe(path string, fn func()) (func(), error) {
	w.subs[path] = append(w.subs[path], fn)
	return func() { delete(w.subs, path) }, nil
}

func (w *fakeWatcher) touch(path string) {
	for _, fn := range w.subs[path] {
		fn()
	}
}

type reloadWorld struct {
	domain    *metadata.Domain
	window    *metadata.TypeDef
	titleBar  *metadata.FieldDef
	unit      *scan.Unit
	populated []*metadata.Instance
	refreshed int
}

func newReloadWorld(t *testing.T) *reloadWorld {
	t.Helper()
	w := &reloadWorld{}
	w.domain = metadata.NewDomain(metadata.Runtime{Version: metadata.Version{Major: 6, Minor: 0}})
	a := w.domain.NewAssembly("App")

	w.window = a.NewType("App.Views", "MainWindow", nil)
	w.titleBar = w.window.NewField("TitleBar", metadata.TypeObject, false)
	override := w.window.NewField("!XamlIlPopulateOverride", metadata.TypeObject, true)
	refresh := w.window.NewMethod(metadata.MethodSpec{
		Name:  "OnHotReload",
		Attrs: []string{"AvaloniaHotReloadAttribute"},
		Impl: func(_ any, _ []any) any {
			w.refreshed++
			return nil
		},
	})
	build := w.window.NewMethod(metadata.MethodSpec{Name: ".ctor"})
	populate := w.window.NewMethod(metadata.MethodSpec{
		Name:   "!XamlIlPopulate",
		Static: true,
		Params: []metadata.ParamDef{
			{Name: "sp", Type: metadata.TypeServiceProvider},
			{Name: "target", Type: w.window},
		},
		Impl: func(_ any, args []any) any {
			w.populated = append(w.populated, args[1].(*metadata.Instance))
			return nil
		},
	})

	w.unit = &scan.Unit{
		Locator:        "avares://App/Views/MainWindow.axaml",
		Type:           w.window,
		Build:          build,
		Populate:       populate,
		Override:       override,
		NamedRefs:      []scan.NamedRef{{Name: "TitleBar", Type: metadata.TypeObject, Field: w.titleBar}},
		RefreshMethods: []*metadata.MethodDef{refresh},
	}
	return w
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr bool
	}{
		{"plain", "avares://App/Views/MainWindow.axaml", filepath.Join("/src", "Views", "MainWindow.axaml"), false},
		{"nested", "avares://App/A/B/C.axaml", filepath.Join("/src", "A", "B", "C.axaml"), false},
		{"wrong scheme", "https://App/Views/X.axaml", "", true},
		{"no path", "avares://App", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.locator, "/src")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolvePath(%q) succeeded with %q", tt.locator, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePath: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolvePath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReloadRepopulatesAndRefreshes(t *testing.T) {
	w := newReloadWorld(t)
	watcher := newFakeWatcher()
	cm := NewControlManager(watcher, "/src")
	defer cm.Close()

	instance := metadata.NewInstance(w.window)
	instance.SetField(w.titleBar, "stale")
	if err := cm.Register(w.unit, instance); err != nil {
		t.Fatalf("Register: %v", err)
	}

	path := filepath.Join("/src", "Views", "MainWindow.axaml")
	watcher.touch(path)

	if len(w.populated) != 1 || w.populated[0] != instance {
		t.Fatalf("populate calls = %v", w.populated)
	}
	if got := instance.GetField(w.titleBar); got != nil {
		t.Errorf("named-ref cache not invalidated, holds %v", got)
	}
	if w.refreshed != 1 {
		t.Errorf("refresh method ran %d times", w.refreshed)
	}
}

func TestReloadPrefersOverrideSlot(t *testing.T) {
	w := newReloadWorld(t)
	watcher := newFakeWatcher()
	cm := NewControlManager(watcher, "/src")
	defer cm.Close()

	var overridden []*metadata.Instance
	w.unit.Override.SetStaticValue(metadata.Impl(func(_ any, args []any) any {
		overridden = append(overridden, args[1].(*metadata.Instance))
		return nil
	}))

	instance := metadata.NewInstance(w.window)
	if err := cm.Register(w.unit, instance); err != nil {
		t.Fatalf("Register: %v", err)
	}
	watcher.touch(filepath.Join("/src", "Views", "MainWindow.axaml"))

	if len(overridden) != 1 || overridden[0] != instance {
		t.Fatalf("override calls = %v", overridden)
	}
	if len(w.populated) != 0 {
		t.Fatalf("compiled populate ran despite override, calls = %v", w.populated)
	}
}

func TestCloseStopsReloads(t *testing.T) {
	w := newReloadWorld(t)
	watcher := newFakeWatcher()
	cm := NewControlManager(watcher, "/src")

	instance := metadata.NewInstance(w.window)
	if err := cm.Register(w.unit, instance); err != nil {
		t.Fatalf("Register: %v", err)
	}
	cm.Close()
	watcher.touch(filepath.Join("/src", "Views", "MainWindow.axaml"))
	if len(w.populated) != 0 {
		t.Fatal("reload fired after Close")
	}
	if err := cm.Register(w.unit, instance); err != ErrClosed {
		t.Fatalf("Register after Close err = %v, want ErrClosed", err)
	}
}

// assocValue carries a pointer so every allocation gets its own heap
// object. Small pointer-free values can be batched into one tiny-alloc
// block whose liveness is shared with live neighbors, which would keep
// their weak pointers set.
type assocValue struct {
	n    int
	self *assocValue
}

func newAssocValue(n int) *assocValue {
	v := &assocValue{n: n}
	v.self = v
	return v
}

func TestWeakAssocDropsCollectedValues(t *testing.T) {
	a := newWeakAssoc[string, assocValue]()
	kept := newAssocValue(1)
	a.put("kept", kept)

	func() {
		a.put("dropped", newAssocValue(2))
	}()
	runtime.GC()
	runtime.GC()

	if v, ok := a.get("kept"); !ok || v.n != 1 {
		t.Fatal("live entry lost")
	}
	if _, ok := a.get("dropped"); ok {
		t.Fatal("collected entry still resolves")
	}
	runtime.KeepAlive(kept)
}

func TestAssetInterception(t *testing.T) {
	w := newReloadWorld(t)
	env := inject.NewEnv(&w.domain.Runtime)
	env.NativeProbe = func() bool { return false }

	var stored []string
	setter := w.window.NewMethod(metadata.MethodSpec{
		Name:   "SetIcon",
		Params: []metadata.ParamDef{{Name: "asset", Type: metadata.TypeObject}},
		Impl: func(_ any, args []any) any {
			stored = append(stored, "raw:"+args[0].(string))
			return nil
		},
	})

	var bound []string
	am := NewAssetManager(env,
		func(asset any) any { return "wrapped:" + asset.(string) },
		func(_ any, asset any) { bound = append(bound, asset.(string)) },
	)
	if err := am.InterceptAll([]*metadata.MethodDef{setter}); err != nil {
		t.Fatalf("InterceptAll: %v", err)
	}

	recv := metadata.NewInstance(w.window)
	if _, err := setter.Invoke(recv, "icon.png"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(bound) != 1 || bound[0] != "wrapped:icon.png" {
		t.Fatalf("rebinder calls = %v", bound)
	}
	if len(stored) != 0 {
		t.Fatalf("compiled setter ran despite interception, calls = %v", stored)
	}

	if err := am.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := setter.Invoke(recv, "icon.png"); err != nil {
		t.Fatalf("Invoke after Close: %v", err)
	}
	if len(stored) != 1 || stored[0] != "raw:icon.png" {
		t.Fatalf("original setter not restored, calls = %v", stored)
	}
}

package hotreload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"rekindle/internal/hook"
	"rekindle/internal/inject"
	"rekindle/internal/metadata"
)

// Rebinder applies a wrapped asset to a receiver, replacing whatever
// the intercepted setter would have stored.
type Rebinder func(recv any, asset any)

// AssetManager patches framework asset setters once at startup so that
// loaded assets are replaced with live, change-aware wrappers. One
// callback injection per setter; Close tears them all down.
type AssetManager struct {
	log  commonlog.Logger
	env  *inject.Env
	wrap func(asset any) any
	bind Rebinder

	mu      sync.Mutex
	handles []*hook.Handle
}

func NewAssetManager(env *inject.Env, wrap func(asset any) any, bind Rebinder) *AssetManager {
	return &AssetManager{
		log:  commonlog.GetLogger("rekindle.hotreload"),
		env:  env,
		wrap: wrap,
		bind: bind,
	}
}

// Intercept hooks one setter: the callback wraps the incoming asset,
// rebinds it through the manager's Rebinder, and short-circuits the
// compiled setter body.
func (am *AssetManager) Intercept(setter *metadata.MethodDef) error {
	if setter.Static || len(setter.Params) != 1 {
		return fmt.Errorf("hotreload: %s is not an instance setter", setter.FullName())
	}
	h, err := hook.Inject(am.env, setter, hook.Callback{
		Fn: func(recv any, asset any) bool {
			am.bind(recv, am.wrap(asset))
			return true
		},
		Markers: []hook.Marker{hook.MarkerCallerInstance},
	})
	if err != nil {
		return fmt.Errorf("hotreload: intercept %s: %w", setter.FullName(), err)
	}
	am.mu.Lock()
	am.handles = append(am.handles, h)
	am.mu.Unlock()
	return nil
}

// InterceptAll hooks every setter, undoing the ones already installed
// if any fails, so a partial startup leaves nothing patched.
func (am *AssetManager) InterceptAll(setters []*metadata.MethodDef) error {
	for _, s := range setters {
		if err := am.Intercept(s); err != nil {
			am.Close()
			return err
		}
	}
	return nil
}

// Close removes every installed interception, last first.
func (am *AssetManager) Close() error {
	am.mu.Lock()
	handles := am.handles
	am.handles = nil
	am.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

//go:build !linux || !(amd64 || arm64)

package inject

import (
	"fmt"

	"rekindle/internal/metadata"
)

const nativeSupported = false

func newNativePatch(target *metadata.MethodDef, _ Replacement) (patchSite, error) {
	return nil, fmt.Errorf("%w: native hooking unavailable on this platform (target %s)",
		ErrUnsupported, target.FullName())
}

package hotreload

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const locatorScheme = "avares"

// ResolvePath maps a unit's resource locator to the markup file it was
// compiled from, under the given project root. The locator's authority
// component names the assembly and is dropped; the path maps onto the
// source tree directly.
func ResolvePath(locator, root string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("hotreload: parse locator %q: %w", locator, err)
	}
	if u.Scheme != locatorScheme {
		return "", fmt.Errorf("hotreload: locator %q: unexpected scheme %q", locator, u.Scheme)
	}
	rel := strings.TrimPrefix(u.Path, "/")
	if rel == "" {
		return "", fmt.Errorf("hotreload: locator %q has no path", locator)
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

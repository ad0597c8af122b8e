// Package output writes rekindle analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rekindle/internal/cil"
	"rekindle/internal/scan"
)

// UnitEntry is the serialized form of one recovered UI unit.
type UnitEntry struct {
	Locator  string   `json:"locator"`
	Type     string   `json:"type"`
	Build    string   `json:"build"`
	Populate string   `json:"populate"`
	Override string   `json:"override,omitempty"`
	Named    []string `json:"named,omitempty"`
	Refresh  []string `json:"refresh,omitempty"`
}

// EntryForUnit flattens a scanned unit into its wire form.
func EntryForUnit(u *scan.Unit) UnitEntry {
	e := UnitEntry{
		Locator:  u.Locator,
		Type:     u.Type.FullName(),
		Build:    u.Build.FullName(),
		Populate: u.Populate.FullName(),
	}
	if u.Override != nil {
		e.Override = u.Override.Decl.FullName() + "." + u.Override.Name
	}
	for _, ref := range u.NamedRefs {
		e.Named = append(e.Named, ref.Name)
	}
	for _, m := range u.RefreshMethods {
		e.Refresh = append(e.Refresh, m.Name)
	}
	return e
}

// WriteUnitsJSON writes recovered units to units.json.
func WriteUnitsJSON(dir string, units []*scan.Unit) error {
	entries := make([]UnitEntry, len(units))
	for i, u := range units {
		entries[i] = EntryForUnit(u)
	}
	return writeJSON(filepath.Join(dir, "units.json"), entries)
}

// WriteIL writes a formatted method listing to il/<name>.il.
// name may contain path separators (e.g., "OwnerType/Method") for
// directory grouping.
func WriteIL(dir string, name string, body []byte, res cil.TokenResolver) error {
	path := filepath.Join(dir, "il", name+".il")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir il: %w", err)
	}
	return os.WriteFile(path, []byte(cil.Format(body, res)), 0644)
}

// WriteDOT writes a rendered graph to <name>.dot.
func WriteDOT(dir string, name string, dot string) error {
	return os.WriteFile(filepath.Join(dir, name+".dot"), []byte(dot), 0644)
}

// ListingName maps a method to a stable on-disk listing path,
// grouping by declaring type.
func ListingName(typeFull, method string) string {
	safe := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch r {
			case '/', '\\', ':', '!':
				return '_'
			}
			return r
		}, s)
	}
	return safe(typeFull) + "/" + safe(method)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

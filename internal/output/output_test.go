package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rekindle/internal/cil"
	"rekindle/internal/metadata"
	"rekindle/internal/scan"
)

func testUnit(t *testing.T) (*scan.Unit, *metadata.Module) {
	t.Helper()
	d := metadata.NewDomain(metadata.Runtime{Version: metadata.Version{Major: 8, Minor: 0}})
	asm := d.NewAssembly("App")
	mod := asm.Module()

	window := asm.NewType("App.Views", "MainWindow", nil)
	override := window.NewField("!XamlIlPopulateOverride", metadata.TypeObject, true)
	refresh := window.NewMethod(metadata.MethodSpec{Name: "OnHotReload"})
	child := window.NewField("TitleBar", window, false)

	loader := asm.NewType("CompiledAvaloniaXaml", "!XamlLoader", nil)
	build := loader.NewMethod(metadata.MethodSpec{
		Name: "Build:avares://App/Views/MainWindow.xaml", Static: true, Return: window,
	})
	populate := loader.NewMethod(metadata.MethodSpec{
		Name: "Populate:avares://App/Views/MainWindow.xaml", Static: true,
		Params: []metadata.ParamDef{
			{Name: "sp", Type: metadata.TypeServiceProvider},
			{Name: "target", Type: window},
		},
		Body: cil.NewEncoder().
			Op(cil.Ldarg0).
			Op(cil.Ldarg1).
			Token(cil.Ldstr, mod.StringToken("avares://App/Views/MainWindow.xaml")).
			Op(cil.Ret).
			MustBytes(),
	})

	return &scan.Unit{
		Locator:        "avares://App/Views/MainWindow.xaml",
		Type:           window,
		Build:          build,
		Populate:       populate,
		Override:       override,
		NamedRefs:      []scan.NamedRef{{Name: "TitleBar", Type: window, Field: child}},
		RefreshMethods: []*metadata.MethodDef{refresh},
	}, mod
}

func TestWriteUnitsJSON(t *testing.T) {
	unit, _ := testUnit(t)
	dir := t.TempDir()

	if err := WriteUnitsJSON(dir, []*scan.Unit{unit}); err != nil {
		t.Fatalf("WriteUnitsJSON: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "units.json"))
	if err != nil {
		t.Fatalf("read units.json: %v", err)
	}
	var entries []UnitEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Locator != unit.Locator {
		t.Errorf("locator = %q", e.Locator)
	}
	if e.Type != "App.Views.MainWindow" {
		t.Errorf("type = %q", e.Type)
	}
	if !strings.HasPrefix(e.Build, "CompiledAvaloniaXaml.!XamlLoader::") {
		t.Errorf("build = %q", e.Build)
	}
	if !strings.HasPrefix(e.Populate, "CompiledAvaloniaXaml.!XamlLoader::Populate:") {
		t.Errorf("populate = %q", e.Populate)
	}
	if e.Override == "" || !strings.Contains(e.Override, "!XamlIlPopulateOverride") {
		t.Errorf("override = %q", e.Override)
	}
	if len(e.Named) != 1 || e.Named[0] != "TitleBar" {
		t.Errorf("named = %v", e.Named)
	}
	if len(e.Refresh) != 1 || e.Refresh[0] != "OnHotReload" {
		t.Errorf("refresh = %v", e.Refresh)
	}
}

func TestWriteIL(t *testing.T) {
	unit, mod := testUnit(t)
	dir := t.TempDir()

	name := ListingName(unit.Populate.Decl.FullName(), unit.Populate.Name)
	if err := WriteIL(dir, name, unit.Populate.Body, mod); err != nil {
		t.Fatalf("WriteIL: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "il", name+".il"))
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "ldstr") {
		t.Errorf("listing missing ldstr:\n%s", text)
	}
	if !strings.Contains(text, `"avares://App/Views/MainWindow.xaml"`) {
		t.Errorf("listing missing resolved locator:\n%s", text)
	}
}

func TestListingNameSanitizes(t *testing.T) {
	got := ListingName("CompiledAvaloniaXaml.!XamlLoader", "Build:avares://App/a.xaml")
	if strings.ContainsAny(got[strings.IndexByte(got, '/')+1:], "/\\:!") {
		t.Errorf("unsanitized listing name %q", got)
	}
	if !strings.Contains(got, "/") {
		t.Errorf("listing name %q not grouped by type", got)
	}
}

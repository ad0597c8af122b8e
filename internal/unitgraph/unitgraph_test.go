package unitgraph

import (
	"testing"

	"rekindle/internal/metadata"
	"rekindle/internal/scan"
)

func TestBuild(t *testing.T) {
	d := metadata.NewDomain(metadata.Runtime{Version: metadata.Version{Major: 8, Minor: 0}})
	a := d.NewAssembly("App")
	win := a.NewType("App.Views", "MainWindow", nil)
	build := win.NewMethod(metadata.MethodSpec{Name: ".ctor"})
	populate := win.NewMethod(metadata.MethodSpec{
		Name:   "!XamlIlPopulate",
		Static: true,
		Params: []metadata.ParamDef{
			{Name: "sp", Type: metadata.TypeServiceProvider},
			{Name: "target", Type: win},
		},
	})
	refresh := win.NewMethod(metadata.MethodSpec{Name: "OnHotReload"})
	field := win.NewField("TitleBar", metadata.TypeObject, false)

	units := []*scan.Unit{{
		Locator:        "avares://App/Views/MainWindow.axaml",
		Type:           win,
		Build:          build,
		Populate:       populate,
		NamedRefs:      []scan.NamedRef{{Name: "TitleBar", Type: metadata.TypeObject, Field: field}},
		RefreshMethods: []*metadata.MethodDef{refresh},
	}}

	g := Build(units)
	if len(g.Nodes) != 1 || g.Nodes[0] != units[0].Locator {
		t.Fatalf("nodes = %v", g.Nodes)
	}
	if len(g.Edges) != 4 {
		t.Fatalf("got %d edges, want 4", len(g.Edges))
	}
	callees := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.Caller != units[0].Locator {
			t.Errorf("edge caller = %q", e.Caller)
		}
		callees[e.Callee] = true
	}
	for _, want := range []string{
		"App.Views.MainWindow::.ctor",
		"App.Views.MainWindow::!XamlIlPopulate",
		"name:TitleBar",
		"App.Views.MainWindow::OnHotReload",
	} {
		if !callees[want] {
			t.Errorf("missing edge to %q", want)
		}
	}
}

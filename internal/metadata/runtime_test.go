package metadata

import "testing"

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		v, o Version
		want bool
	}{
		{Version{7, 0}, Version{7, 0}, true},
		{Version{8, 0}, Version{7, 0}, true},
		{Version{7, 3}, Version{7, 0}, true},
		{Version{6, 9}, Version{7, 0}, false},
		{Version{6, 0}, Version{6, 1}, false},
	}
	for _, tt := range tests {
		if got := tt.v.AtLeast(tt.o); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.v, tt.o, got, tt.want)
		}
	}
}

func TestStableEntries(t *testing.T) {
	tests := []struct {
		name    string
		rt      Runtime
		want    bool
	}{
		{
			name: "no tiering",
			rt:   Runtime{Version: Version{8, 0}, TieringEnabled: false},
			want: true,
		},
		{
			name: "tiering before tiered entries",
			rt:   Runtime{Version: Version{6, 0}, TieringEnabled: true},
			want: true,
		},
		{
			name: "tiering on modern runtime",
			rt:   Runtime{Version: Version{8, 0}, TieringEnabled: true, DebugProbe: func() bool { return false }},
			want: false,
		},
		{
			name: "tiering suppressed by debugger",
			rt:   Runtime{Version: Version{8, 0}, TieringEnabled: true, DebugProbe: func() bool { return true }},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rt.StableEntries(); got != tt.want {
				t.Errorf("StableEntries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainAccessGrants(t *testing.T) {
	d := NewDomain(Runtime{Version: Version{8, 0}})
	if d.HasAccess("App", "App.Internal") {
		t.Fatal("access granted before any grant")
	}
	d.GrantAccess("App", "App.Internal")
	if !d.HasAccess("App", "App.Internal") {
		t.Fatal("grant not recorded")
	}
	if d.HasAccess("App.Internal", "App") {
		t.Error("grant must be directional")
	}
}

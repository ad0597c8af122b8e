package cil

import (
	"errors"
	"strings"
	"testing"
)

type fakeHandle string

func (h fakeHandle) MethodName() string { return string(h) }
func (h fakeHandle) FieldName() string  { return string(h) }
func (h fakeHandle) TypeName() string   { return string(h) }

type fakeResolver struct {
	strings map[uint32]string
	methods map[uint32]string
}

func (f *fakeResolver) ResolveString(token uint32) (string, error) {
	if s, ok := f.strings[token]; ok {
		return s, nil
	}
	return "", errors.New("no such string")
}

func (f *fakeResolver) ResolveMethod(token uint32) (MethodHandle, error) {
	if m, ok := f.methods[token]; ok {
		return fakeHandle(m), nil
	}
	return nil, errors.New("no such method")
}

func (f *fakeResolver) ResolveField(token uint32) (FieldHandle, error) {
	return nil, errors.New("no such field")
}

func (f *fakeResolver) ResolveType(token uint32) (TypeHandle, error) {
	return nil, errors.New("no such type")
}

func TestFormatListing(t *testing.T) {
	body := NewEncoder().
		Op(Ldarg0).
		Token(Ldstr, 0x70000001).
		Token(Call, 0x06000002).
		Int8(LdcI4S, -5).
		Op(Ret).
		MustBytes()
	res := &fakeResolver{
		strings: map[uint32]string{0x70000001: "avares://App/Main.xaml"},
		methods: map[uint32]string{0x06000002: "Window.Build"},
	}

	out := Format(body, res)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}

	checks := []struct{ line, want string }{
		{lines[0], "IL_0000"},
		{lines[0], "ldarg.0"},
		{lines[1], `; "avares://App/Main.xaml"`},
		{lines[2], "; Window.Build"},
		{lines[3], "ldc.i4.s -5"},
		{lines[4], "ret"},
	}
	for _, c := range checks {
		if !strings.Contains(c.line, c.want) {
			t.Errorf("line %q missing %q", c.line, c.want)
		}
	}
}

func TestFormatUnresolvedToken(t *testing.T) {
	body := NewEncoder().Token(Ldstr, 0x70000042).Op(Ret).MustBytes()

	out := Format(body, &fakeResolver{})
	if !strings.Contains(out, "0x70000042") {
		t.Errorf("token not shown numerically:\n%s", out)
	}
	if strings.Contains(out, ";") {
		t.Errorf("unresolved token must not grow a comment:\n%s", out)
	}
}

func TestFormatSwitchAndUndecodableTail(t *testing.T) {
	body := NewEncoder().
		Switch([]int32{4, -8}).
		Op(Ret).
		Raw(0x24). // unassigned opcode
		MustBytes()

	out := Format(body, nil)
	if !strings.Contains(out, "switch (+4, -8)") {
		t.Errorf("switch targets not expanded:\n%s", out)
	}
	if !strings.Contains(out, "??") {
		t.Errorf("undecodable tail not marked:\n%s", out)
	}
}

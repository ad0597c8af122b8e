package metadata

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Assembly image format: a 5-byte header (magic "RKIM" plus a format
// version byte) followed by a CBOR payload of the metadata tables. The
// image carries no implementations; loaded methods resolve bodies and
// signatures only, which is all the scanner and the CLI need.

var imageMagic = [4]byte{'R', 'K', 'I', 'M'}

const imageVersion = 1

var (
	ErrBadImage     = errors.New("metadata: not an assembly image")
	ErrImageVersion = errors.New("metadata: unsupported image version")
)

type imageFile struct {
	Assembly imageAssembly `cbor:"assembly"`
}

type imageAssembly struct {
	Name    string      `cbor:"name"`
	Types   []imageType `cbor:"types"`
	Strings []string    `cbor:"strings"`
	// Module tables in row order, so embedded tokens stay valid.
	MethodRefs []imageMemberRef `cbor:"method_refs"`
	FieldRefs  []imageMemberRef `cbor:"field_refs"`
	TypeRefs   []string         `cbor:"type_refs"`
}

type imageType struct {
	Namespace string        `cbor:"namespace"`
	Name      string        `cbor:"name"`
	Kind      uint8         `cbor:"kind"`
	Base      string        `cbor:"base,omitempty"`
	Ifaces    []string      `cbor:"ifaces,omitempty"`
	Fields    []imageField  `cbor:"fields,omitempty"`
	Methods   []imageMethod `cbor:"methods,omitempty"`
}

type imageField struct {
	Name   string `cbor:"name"`
	Type   string `cbor:"type"`
	Static bool   `cbor:"static,omitempty"`
}

type imageMethod struct {
	Name    string       `cbor:"name"`
	Static  bool         `cbor:"static,omitempty"`
	Virtual bool         `cbor:"virtual,omitempty"`
	Params  []imageParam `cbor:"params,omitempty"`
	Return  string       `cbor:"return,omitempty"`
	Attrs   []string     `cbor:"attrs,omitempty"`
	Body    []byte       `cbor:"body,omitempty"`
}

type imageParam struct {
	Name string `cbor:"name"`
	Type string `cbor:"type"`
}

type imageMemberRef struct {
	Decl string `cbor:"decl"`
	Name string `cbor:"name"`
}

func typeRef(t *TypeDef) string {
	if t == nil {
		return ""
	}
	return t.FullName()
}

// Save writes the assembly's metadata tables as an image.
func Save(w io.Writer, a *Assembly) error {
	img := imageAssembly{Name: a.Name, Strings: a.module.strings}
	for _, t := range a.Types {
		it := imageType{
			Namespace: t.Namespace,
			Name:      t.Name,
			Kind:      uint8(t.Kind),
			Base:      typeRef(t.Base),
		}
		for _, iface := range t.Ifaces {
			it.Ifaces = append(it.Ifaces, iface.FullName())
		}
		for _, f := range t.Fields {
			it.Fields = append(it.Fields, imageField{Name: f.Name, Type: typeRef(f.Type), Static: f.Static})
		}
		for _, m := range t.Methods {
			im := imageMethod{
				Name:    m.Name,
				Static:  m.Static,
				Virtual: m.Virtual,
				Return:  typeRef(m.Return),
				Attrs:   m.Attrs,
				Body:    m.Body,
			}
			for _, p := range m.Params {
				im.Params = append(im.Params, imageParam{Name: p.Name, Type: typeRef(p.Type)})
			}
			it.Methods = append(it.Methods, im)
		}
		img.Types = append(img.Types, it)
	}
	for _, m := range a.module.methods {
		img.MethodRefs = append(img.MethodRefs, imageMemberRef{Decl: typeRef(m.Decl), Name: m.Name})
	}
	for _, f := range a.module.fields {
		img.FieldRefs = append(img.FieldRefs, imageMemberRef{Decl: typeRef(f.Decl), Name: f.Name})
	}
	for _, t := range a.module.types {
		img.TypeRefs = append(img.TypeRefs, t.FullName())
	}

	payload, err := cbor.Marshal(imageFile{Assembly: img})
	if err != nil {
		return fmt.Errorf("metadata: encode image: %w", err)
	}
	if _, err := w.Write(imageMagic[:]); err != nil {
		return fmt.Errorf("metadata: write image header: %w", err)
	}
	if _, err := w.Write([]byte{imageVersion}); err != nil {
		return fmt.Errorf("metadata: write image header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("metadata: write image payload: %w", err)
	}
	return nil
}

// Load reads an assembly image into the domain. Loaded methods carry
// bodies and signatures but no implementations.
func Load(r io.Reader, d *Domain) (*Assembly, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: read image: %w", err)
	}
	if len(raw) < 5 || [4]byte(raw[:4]) != imageMagic {
		return nil, ErrBadImage
	}
	if raw[4] != imageVersion {
		return nil, fmt.Errorf("%w: %d, want %d", ErrImageVersion, raw[4], imageVersion)
	}
	var img imageFile
	if err := cbor.Unmarshal(raw[5:], &img); err != nil {
		return nil, fmt.Errorf("metadata: decode image: %w", err)
	}
	ia := img.Assembly

	a := &Assembly{Name: ia.Name, Domain: d}
	a.module = &Module{asm: a, strings: ia.Strings}
	d.mu.Lock()
	d.asms = append(d.asms, a)
	d.mu.Unlock()

	// First pass: declare types so refs resolve regardless of order.
	byName := make(map[string]*TypeDef, len(ia.Types))
	for _, it := range ia.Types {
		t := &TypeDef{
			Namespace: it.Namespace,
			Name:      it.Name,
			Kind:      TypeKind(it.Kind),
			Asm:       a,
			Go:        instanceGoType,
		}
		if t.Kind != KindClass {
			t.Go = anyGoType
		}
		a.Types = append(a.Types, t)
		byName[t.FullName()] = t
	}

	lookupType := func(name string) *TypeDef {
		if name == "" {
			return nil
		}
		if t, ok := byName[name]; ok {
			return t
		}
		if t := BuiltinAssembly.Type(name); t != nil {
			return t
		}
		for _, other := range d.Assemblies() {
			if other == a {
				continue
			}
			if t := other.Type(name); t != nil {
				return t
			}
		}
		return nil
	}

	// Second pass: members.
	for i, it := range ia.Types {
		t := a.Types[i]
		t.Base = lookupType(it.Base)
		if t.Base == nil && t.Kind == KindClass {
			t.Base = TypeObject
		}
		for _, name := range it.Ifaces {
			if iface := lookupType(name); iface != nil {
				t.Ifaces = append(t.Ifaces, iface)
			}
		}
		for _, ifd := range it.Fields {
			f := &FieldDef{Name: ifd.Name, Decl: t, Type: lookupType(ifd.Type), Static: ifd.Static}
			t.Fields = append(t.Fields, f)
		}
		nextSlot := 0
		for _, im := range it.Methods {
			m := &MethodDef{
				Name:    im.Name,
				Decl:    t,
				Static:  im.Static,
				Virtual: im.Virtual,
				Return:  lookupType(im.Return),
				Attrs:   im.Attrs,
				Body:    im.Body,
				slot:    -1,
			}
			if m.Return == nil {
				m.Return = TypeVoid
			}
			if m.Virtual {
				m.slot = nextSlot
				nextSlot++
			}
			for _, p := range im.Params {
				m.Params = append(m.Params, ParamDef{Name: p.Name, Type: lookupType(p.Type)})
			}
			t.Methods = append(t.Methods, m)
		}
	}

	// Third pass: module tables in saved row order, so tokens embedded
	// in method bodies keep resolving to the same rows.
	for _, ref := range ia.MethodRefs {
		decl := lookupType(ref.Decl)
		if decl == nil {
			return nil, fmt.Errorf("%w: method ref %s::%s", ErrBadImage, ref.Decl, ref.Name)
		}
		m := decl.Method(ref.Name)
		if m == nil {
			return nil, fmt.Errorf("%w: method ref %s::%s", ErrBadImage, ref.Decl, ref.Name)
		}
		a.module.methods = append(a.module.methods, m)
		if m.Decl.Asm == a {
			m.token = MakeToken(TokenKindMethod, uint32(len(a.module.methods)))
		}
	}
	for _, ref := range ia.FieldRefs {
		decl := lookupType(ref.Decl)
		if decl == nil {
			return nil, fmt.Errorf("%w: field ref %s::%s", ErrBadImage, ref.Decl, ref.Name)
		}
		f := decl.Field(ref.Name)
		if f == nil {
			return nil, fmt.Errorf("%w: field ref %s::%s", ErrBadImage, ref.Decl, ref.Name)
		}
		a.module.fields = append(a.module.fields, f)
		if f.Decl.Asm == a {
			f.token = MakeToken(TokenKindField, uint32(len(a.module.fields)))
		}
	}
	for _, name := range ia.TypeRefs {
		t := lookupType(name)
		if t == nil {
			return nil, fmt.Errorf("%w: type ref %s", ErrBadImage, name)
		}
		a.module.types = append(a.module.types, t)
		if t.Asm == a {
			t.token = MakeToken(TokenKindType, uint32(len(a.module.types)))
		}
	}

	return a, nil
}

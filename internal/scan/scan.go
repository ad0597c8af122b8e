package scan

import (
	"strings"

	"github.com/tliron/commonlog"

	"rekindle/internal/cil"
	"rekindle/internal/metadata"
)

// Scanner discovers markup units in loaded assemblies. Structural
// mismatches skip the candidate and keep going; a scan never fails.
type Scanner struct {
	log commonlog.Logger
}

func NewScanner() *Scanner {
	return &Scanner{log: commonlog.GetLogger("rekindle.scan")}
}

// FindControls recovers every discoverable unit of the assembly: first
// by walking the generated dispatcher, then by scanning all types for
// the per-type populate convention. Duplicate locators keep the
// dispatcher's descriptor.
func (s *Scanner) FindControls(asm *metadata.Assembly) []*Unit {
	var units []*Unit
	if dispatcher := findDispatcher(asm); dispatcher != nil {
		units = s.walkDispatcher(asm, dispatcher)
	} else {
		s.log.Debugf("no %s.%s dispatcher in %s", dispatcherTypeName, dispatcherMethodName, asm.Name)
	}
	units = append(units, s.scanTypeConvention(asm)...)

	seen := make(map[string]struct{}, len(units))
	out := units[:0]
	for _, u := range units {
		if _, dup := seen[u.Locator]; dup {
			continue
		}
		seen[u.Locator] = struct{}{}
		out = append(out, u)
	}
	return out
}

func findDispatcher(asm *metadata.Assembly) *metadata.MethodDef {
	t := asm.Type(dispatcherTypeName)
	if t == nil {
		return nil
	}
	m := t.Method(dispatcherMethodName)
	if m == nil || len(m.Body) == 0 {
		return nil
	}
	return m
}

// walkDispatcher decodes the dispatcher body sequentially with two
// rolling slots: the last loaded string literal and the current
// candidate locator. A ret ends a dispatch branch and clears both; a
// string-equality call promotes the last literal to candidate; a
// build-shaped call or newobj with a candidate in hand triggers
// extraction.
func (s *Scanner) walkDispatcher(asm *metadata.Assembly, dispatcher *metadata.MethodDef) []*Unit {
	mod := asm.Module()
	var units []*Unit

	var lastString, candidate string
	var haveLast, haveCandidate bool
	reset := func() {
		haveLast, haveCandidate = false, false
	}

	r := cil.NewReader(dispatcher.Body)
	for r.Next() {
		switch r.Op().Value {
		case cil.Ret.Value:
			reset()

		case cil.Ldstr.Value:
			str, err := r.ResolveString(mod)
			if err != nil {
				continue
			}
			lastString, haveLast = str, true

		case cil.Call.Value, cil.Callvirt.Value, cil.Newobj.Value:
			mh, err := r.ResolveMethod(mod)
			if err != nil {
				continue
			}
			target, ok := mh.(*metadata.MethodDef)
			if !ok {
				continue
			}
			if isStringEquals(target) {
				if haveLast {
					candidate, haveCandidate = lastString, true
				}
				continue
			}
			if !haveCandidate || !isBuildCandidate(r.Op(), target) {
				continue
			}
			if u := s.extractUnit(candidate, target); u != nil {
				units = append(units, u)
			} else {
				s.log.Debugf("no populate pair for %s, skipping %q", target.FullName(), candidate)
			}
			reset()
		}
	}
	return units
}

func isStringEquals(m *metadata.MethodDef) bool {
	if m == metadata.StringEquals {
		return true
	}
	return m.Name == "Equals" && m.Decl != nil && m.Decl.FullName() == "System.String"
}

// isBuildCandidate reports whether the call site could construct a
// unit: a static build-shaped call, or a newobj on a constructor taking
// nothing or a single service provider.
func isBuildCandidate(op cil.OpCode, m *metadata.MethodDef) bool {
	if op.Value == cil.Newobj.Value {
		return isCtorShape(m)
	}
	return m.IsBuildShape()
}

func isCtorShape(m *metadata.MethodDef) bool {
	if m.Static || m.Name != ".ctor" {
		return false
	}
	switch len(m.Params) {
	case 0:
		return true
	case 1:
		return m.Params[0].Type == metadata.TypeServiceProvider
	default:
		return false
	}
}

// extractUnit pairs a build entry point with its populate method and
// assembles the descriptor. Returns nil when the pairing or signature
// check fails; the caller skips silently.
func (s *Scanner) extractUnit(locator string, build *metadata.MethodDef) *Unit {
	populate := resolvePopulate(build)
	if populate == nil || !populate.IsPopulateShape() {
		return nil
	}
	unitType := populate.Params[1].Type
	if unitType == nil {
		return nil
	}
	u := &Unit{
		Locator:  locator,
		Type:     unitType,
		Build:    build,
		Populate: populate,
		Override: unitType.Field(overrideFieldName),
	}
	u.NamedRefs = s.scanNamedRefs(unitType)
	u.RefreshMethods = refreshMethods(unitType)
	return u
}

// resolvePopulate applies the naming conventions: a "Build:" method
// pairs with the "Populate:" method of the same suffix on the same
// type; anything else falls back to the per-type populate method on
// the built type.
func resolvePopulate(build *metadata.MethodDef) *metadata.MethodDef {
	if suffix, ok := strings.CutPrefix(build.Name, buildPrefix); ok && build.Decl != nil {
		return build.Decl.Method(populatePrefix + suffix)
	}
	unitType := build.Return
	if build.Name == ".ctor" {
		unitType = build.Decl
	}
	if unitType == nil {
		return nil
	}
	return unitType.Method(typePopulateName)
}

// scanTypeConvention discovers units that never pass through the
// dispatcher: any type carrying the fixed-name populate method. The
// locator comes out of the populate body itself.
func (s *Scanner) scanTypeConvention(asm *metadata.Assembly) []*Unit {
	var units []*Unit
	for _, t := range asm.Types {
		populate := t.Method(typePopulateName)
		if populate == nil || !populate.IsPopulateShape() {
			continue
		}
		locator := s.populateLocator(populate)
		if locator == "" {
			s.log.Debugf("no locator in %s, skipping", populate.FullName())
			continue
		}
		build := t.Method(".ctor")
		if build == nil || !isCtorShape(build) {
			s.log.Debugf("no usable constructor on %s, skipping", t.FullName())
			continue
		}
		units = append(units, &Unit{
			Locator:        locator,
			Type:           t,
			Build:          build,
			Populate:       populate,
			Override:       t.Field(overrideFieldName),
			NamedRefs:      s.scanNamedRefs(t),
			RefreshMethods: refreshMethods(t),
		})
	}
	return units
}

package exprparser

import (
	"strconv"
	"strings"

	"framexpr/internal/bytecode"
	"framexpr/internal/model"
)

// statOps is the set of statistic operators PUSH_STATISTIC accepts, each
// optionally suffixed NZ to ignore zero-valued inputs (spec §4.7).
var statOps = map[string]bool{
	"MAX": true, "MEAN": true, "MIN": true, "N": true, "SD": true, "SUM": true, "VAR": true,
}

// parseVarRef parses the space-folded inner text of a `[...]` reference
// (spec §4.2/§6 grammar: `var := stat? name? offset?`) into a VarRef. self
// is the aspect that owns the expression being compiled, needed to detect
// and validate self-references.
func (p *Parser) parseVarRef(inner string) (bytecode.VarRef, error) {
	head, offsetPart, hasOffset := splitOffset(inner)
	head = strings.TrimSpace(head)

	ref := bytecode.VarRef{}
	selfRef := head == ""

	if dollar := strings.IndexByte(head, '$'); dollar >= 0 {
		op := strings.ToUpper(strings.TrimSpace(head[:dollar]))
		pattern := strings.TrimSpace(head[dollar+1:])
		nz := strings.HasSuffix(op, "NZ")
		base := op
		if nz {
			base = strings.TrimSuffix(op, "NZ")
		}
		if !statOps[base] {
			return ref, &CompileError{Message: "Unknown statistic operator \"" + op + "\""}
		}
		ref.Kind = bytecode.RefStatistic
		ref.Statistic = op
		ref.Pattern = pattern
	} else if !selfRef {
		ref.Kind = bytecode.RefVar
		ref.Name = head
		aspect, err := p.graph.Resolve(p.scope, head)
		if err != nil {
			return ref, &CompileError{Message: err.Error()}
		}
		ref.Name = aspect.ID
	} else {
		ref.Kind = bytecode.RefVar
		ref.SelfRef = true
		if p.self != nil {
			ref.Name = p.self.ID
		}
	}

	a1, o1, a2, hasO2, o2, err := parseOffsetPart(offsetPart, hasOffset)
	if err != nil {
		return ref, err
	}
	ref.Anchor1, ref.Offset1 = a1, o1
	ref.HasOffset2, ref.Anchor2, ref.Offset2 = hasO2, a2, o2

	if selfRef {
		ref.SelfRef = true
		if ref.Anchor1 != '#' && ref.Offset1 >= 0 {
			return ref, &CompileError{Message: "Expression can reference only previous values of itself"}
		}
	}
	return ref, nil
}

// splitOffset divides a var-ref's inner text on its first '@' into the
// stat/name head and the raw offset tail.
func splitOffset(inner string) (head, offset string, hasOffset bool) {
	if at := strings.IndexByte(inner, '@'); at >= 0 {
		return inner[:at], inner[at+1:], true
	}
	return inner, "", false
}

// parseOffsetPart parses "off" or "off1:off2" into resolved anchor/offset
// pairs. With no '@' present at all, the reference means "current cycle":
// anchor 't', offset 0, no second offset.
func parseOffsetPart(raw string, has bool) (a1 byte, o1 int, a2 byte, hasO2 bool, o2 int, err error) {
	if !has {
		return 't', 0, 0, false, 0, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	a1, o1, err = parseOff(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, false, 0, err
	}
	if len(parts) == 2 {
		a2, o2, err = parseOff(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, 0, false, 0, err
		}
		hasO2 = true
	}
	return a1, o1, a2, hasO2, o2, nil
}

// parseOff parses one `anchor? int` offset term.
func parseOff(s string) (anchor byte, value int, err error) {
	if s == "" {
		return 0, 0, &CompileError{Message: "Invalid number"}
	}
	switch {
	case s[0] == 't' || s[0] == 'T':
		anchor = 't'
		s = s[1:]
	case s[0] == '#':
		anchor = '#'
		s = s[1:]
	}
	if s == "" {
		return anchor, 0, nil
	}
	n, convErr := strconv.Atoi(s)
	if convErr != nil {
		return 0, 0, &CompileError{Message: "Invalid number"}
	}
	return anchor, n, nil
}

// resolveSources returns the aspects a statistic reference aggregates
// over, for the parser's static-folding decision (the expression can only
// be static if every matched source is itself static).
func resolveSources(g *model.Graph, scope []*model.Aspect, ref bytecode.VarRef) []*model.Aspect {
	if ref.Kind != bytecode.RefStatistic {
		return nil
	}
	return g.ResolveMatching(scope, ref.Pattern)
}

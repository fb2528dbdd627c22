package model

import "testing"

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Flow Rate", "flow_rate"},
		{"O'Brien", "obrien"},
		{"  Already_Lower  ", "already_lower"},
	}
	for _, tc := range tests {
		if got := NormalizeIdentifier(tc.in); got != tc.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func buildSample(t *testing.T) (*Graph, *Function, *Function, *Aspect) {
	t.Helper()
	g := NewGraph()
	parent := g.AddFunction(&Function{Name: "Assess situation"})
	child := g.AddFunction(&Function{Name: "Decide", Parent: parent})

	aspect := &Aspect{Name: "Flow rate", Text: "1+1"}
	_, err := g.AddCoupling(&Coupling{From: parent, To: child, ToConnector: ConnI, Aspects: []*Aspect{aspect}})
	if err != nil {
		t.Fatalf("AddCoupling: %v", err)
	}
	return g, parent, child, aspect
}

func TestAddCouplingRejectsOutputTarget(t *testing.T) {
	g := NewGraph()
	a := g.AddFunction(&Function{Name: "A"})
	b := g.AddFunction(&Function{Name: "B"})
	_, err := g.AddCoupling(&Coupling{From: a, To: b, ToConnector: ConnO})
	if err == nil {
		t.Fatal("expected error coupling into an Output connector")
	}
}

func TestScopeIncludesCouplingAspects(t *testing.T) {
	g, _, child, aspect := buildSample(t)
	scope := g.Scope(child)
	found := false
	for _, a := range scope {
		if a == aspect {
			found = true
		}
	}
	if !found {
		t.Error("Scope(child) did not include the aspect carried on its incoming coupling")
	}
}

func TestScopeForConnectorRejectsOutput(t *testing.T) {
	g, _, child, _ := buildSample(t)
	_, err := g.ScopeForConnector(child, ConnO)
	if err == nil {
		t.Fatal("expected ScopeForConnector(ConnO) to fail")
	}
}

func TestScopeForConnectorNarrowsToTerminatingConnector(t *testing.T) {
	g, _, child, aspect := buildSample(t)
	scope, err := g.ScopeForConnector(child, ConnI)
	if err != nil {
		t.Fatalf("ScopeForConnector: %v", err)
	}
	if len(scope) != 1 || scope[0] != aspect {
		t.Errorf("ScopeForConnector(I) = %v, want [%v]", scope, aspect)
	}
	other, err := g.ScopeForConnector(child, ConnR)
	if err != nil {
		t.Fatalf("ScopeForConnector: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ScopeForConnector(R) = %v, want empty", other)
	}
}

func TestResolveUnknownAspect(t *testing.T) {
	g, _, child, _ := buildSample(t)
	scope := g.Scope(child)
	if _, err := g.Resolve(scope, "nonexistent"); err == nil {
		t.Fatal("expected Unknown aspect error")
	}
}

func TestResolveFindsByNormalizedName(t *testing.T) {
	g, _, child, aspect := buildSample(t)
	scope := g.Scope(child)
	got, err := g.Resolve(scope, "Flow Rate")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != aspect {
		t.Errorf("Resolve found %v, want %v", got, aspect)
	}
}

func TestResolveMatchingWildcard(t *testing.T) {
	g := NewGraph()
	f := g.AddFunction(&Function{Name: "F"})
	var aspects []*Aspect
	for _, name := range []string{"Flow A", "Flow B", "Other"} {
		a := &Aspect{Name: name}
		aspects = append(aspects, a)
	}
	if _, err := g.AddCoupling(&Coupling{From: f, To: f, ToConnector: ConnI, Aspects: aspects}); err != nil {
		t.Fatalf("AddCoupling: %v", err)
	}
	scope := g.Scope(f)
	matches := g.ResolveMatching(scope, "flow_?")
	if len(matches) != 2 {
		t.Errorf("ResolveMatching(flow_?) = %d matches, want 2", len(matches))
	}
}

func TestGlobMatchStarAndQuestion(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"f*", "flow", true},
		{"f*", "", false},
		{"*", "anything", true},
		{"f??w", "flow", true},
		{"f??w", "flo", false},
		{"a*b", "aXXXb", true},
		{"a*b", "aXXXc", false},
	}
	for _, tc := range tests {
		if got := globMatch(tc.pattern, tc.s); got != tc.want {
			t.Errorf("globMatch(%q,%q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

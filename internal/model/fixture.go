package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fixture is the JSON test-fixture shape `framexpr run`/`framexpr serve`
// load a graph from — a flat, hand-authorable stand-in for the XML
// model-editor format (explicitly a Non-goal per spec.md §1: that format
// is an external-collaborator concern, not this engine's).
type Fixture struct {
	Functions []FixtureFunction `json:"functions"`
	Couplings []FixtureCoupling `json:"couplings"`
}

// FixtureFunction describes one function. Parent, if set, must name a
// function that appears earlier in Functions.
type FixtureFunction struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// FixtureAspect describes one aspect carried by a coupling.
type FixtureAspect struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	Text            string  `json:"text"`
	HasResetDefault bool    `json:"has_reset_default,omitempty"`
	ResetDefault    float64 `json:"reset_default,omitempty"`
}

// FixtureCoupling describes one directed edge between two functions named
// by FixtureFunction.ID.
type FixtureCoupling struct {
	ID          string          `json:"id,omitempty"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	ToConnector string          `json:"to_connector"`
	Feedback    bool            `json:"feedback,omitempty"`
	Aspects     []FixtureAspect `json:"aspects"`
}

// BuildFromFixture constructs a Graph from a Fixture, resolving function
// references by FixtureFunction.ID and connectors by their letter.
func BuildFromFixture(fx Fixture) (*Graph, error) {
	g := NewGraph()
	byID := make(map[string]*Function, len(fx.Functions))

	for _, ff := range fx.Functions {
		if ff.ID == "" {
			return nil, errors.New("model: fixture function missing id")
		}
		if _, dup := byID[ff.ID]; dup {
			return nil, errors.Errorf("model: duplicate fixture function id %q", ff.ID)
		}
		f := &Function{ID: ff.ID, Name: ff.Name}
		if ff.Parent != "" {
			parent, ok := byID[ff.Parent]
			if !ok {
				return nil, errors.Errorf("model: function %q references unknown parent %q (parents must precede children)", ff.ID, ff.Parent)
			}
			f.Parent = parent
		}
		g.AddFunction(f)
		byID[ff.ID] = f
	}

	for _, fc := range fx.Couplings {
		from, ok := byID[fc.From]
		if !ok {
			return nil, errors.Errorf("model: coupling %q references unknown from-function %q", fc.ID, fc.From)
		}
		to, ok := byID[fc.To]
		if !ok {
			return nil, errors.Errorf("model: coupling %q references unknown to-function %q", fc.ID, fc.To)
		}
		connector, ok := ParseConnector(fc.ToConnector)
		if !ok {
			return nil, errors.Errorf("model: coupling %q has unrecognized to_connector %q", fc.ID, fc.ToConnector)
		}

		aspects := make([]*Aspect, 0, len(fc.Aspects))
		for _, fa := range fc.Aspects {
			aspects = append(aspects, &Aspect{
				ID:              fa.ID,
				Name:            fa.Name,
				Owner:           from,
				Text:            fa.Text,
				HasResetDefault: fa.HasResetDefault,
				ResetDefault:    fa.ResetDefault,
			})
		}

		if _, err := g.AddCoupling(&Coupling{
			ID:          fc.ID,
			From:        from,
			To:          to,
			ToConnector: connector,
			Aspects:     aspects,
			Feedback:    fc.Feedback,
		}); err != nil {
			return nil, errors.Wrapf(err, "model: coupling %q", fmt.Sprintf("%s->%s", fc.From, fc.To))
		}
	}

	return g, nil
}

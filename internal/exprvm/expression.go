package exprvm

import (
	"strings"

	"framexpr/internal/bytecode"
	"framexpr/internal/exprparser"
	"framexpr/internal/model"
	"framexpr/internal/values"
)

// Expression owns one aspect's compiled opcode stream, its per-cycle result
// vector, and the runtime state of its most recent evaluation (spec §3's
// Expression data model).
type Expression struct {
	Aspect   *model.Aspect
	Graph    *model.Graph
	Scope    []*model.Aspect
	Text     string
	Cache    *exprparser.Cache
	StaticOf exprparser.StaticLookup

	chunk *bytecode.Chunk

	vector []values.Number
	stack  []stackValue
	step   []int

	compileIssue string
	computeIssue string
	compiling    bool
}

// NewExpression builds an Expression bound to aspect, ready for Reset.
func NewExpression(aspect *model.Aspect, g *model.Graph, scope []*model.Aspect, cache *exprparser.Cache, staticOf exprparser.StaticLookup) *Expression {
	text := ""
	if aspect != nil {
		text = aspect.Text
	}
	return &Expression{
		Aspect:   aspect,
		Graph:    g,
		Scope:    scope,
		Text:     text,
		Cache:    cache,
		StaticOf: staticOf,
	}
}

// ensureCompiled compiles e.Text on first use. The compiling flag guards
// against a reentrant compile: StaticOf compiles the referenced aspect's
// expression, so two aspects that reference each other reenter here.
func (e *Expression) ensureCompiled() {
	if e.chunk != nil || e.compileIssue != "" || e.compiling {
		return
	}
	e.compiling = true
	defer func() { e.compiling = false }()

	if strings.TrimSpace(e.Text) == "" {
		e.chunk = &bytecode.Chunk{IsStatic: true, Text: e.Text}
		return
	}

	var self *model.Aspect
	if e.Aspect != nil {
		self = e.Aspect
	}
	chunk, err := exprparser.CompileCached(e.Cache, e.Graph, e.Scope, self, e.Text, e.StaticOf)
	if err != nil {
		e.compileIssue = err.Error()
		return
	}
	e.chunk = chunk
}

// ensureVectorSized lazily allocates the result vector the first time it is
// needed, per invariant 2 (static length 1, dynamic length >= run_length+1).
// Reset is the normal way a vector is (re)sized; this is a fallback for
// direct Result calls against an Expression that was never Reset (e.g. an
// ad-hoc CLI evaluation).
func (e *Expression) ensureVectorSized(ctx Context) {
	if e.vector != nil {
		return
	}
	e.vector = freshVector(e.chunk, ctx, values.NotComputed)
}

func freshVector(chunk *bytecode.Chunk, ctx Context, fill values.Number) []values.Number {
	size := 1
	if chunk != nil && !chunk.IsStatic {
		size = ctx.RunLength() + ctx.LookAhead() + 2
	}
	v := make([]values.Number, size)
	for i := range v {
		v[i] = fill
	}
	return v
}

// Reset clears runtime state and reinitializes the result vector (spec
// §4.8). An expression with empty text has nothing to evaluate (a slot of
// it that is computed yields UNDEFINED), so every slot is seeded with
// defaultValue; otherwise only slot 0 is — the pre-run baseline
// a self-referencing accumulator's `[@t-1]` resolves to at t=0 instead of
// UNDEFINED (spec §8 scenario 2: "reset to default 0" gives result(1)=1,
// result(5)=5, which only holds if cycle 0 itself carries the seed rather
// than recursing one cycle further back out of range). Ordinary aspects
// pass NOT_COMPUTED as defaultValue, making slot 0 behave exactly like
// every other slot.
func (e *Expression) Reset(ctx Context, defaultValue values.Number) {
	e.stack = nil
	e.step = nil
	e.computeIssue = ""
	e.compileIssue = ""
	e.chunk = nil
	e.compiling = false
	e.ensureCompiled()

	vec := freshVector(e.chunk, ctx, values.NotComputed)
	if strings.TrimSpace(e.Text) == "" {
		for i := range vec {
			vec[i] = defaultValue
		}
	} else if len(vec) > 0 {
		vec[0] = defaultValue
	}
	e.vector = vec
}

// CompileIssue reports the compile-time error message, if any.
func (e *Expression) CompileIssue() string { return e.compileIssue }

// ComputeIssue reports the first runtime error/undefined message
// encountered by this expression, preserved across cycles (spec §7).
func (e *Expression) ComputeIssue() string { return e.computeIssue }

// IsStatic reports whether this expression's value is cycle-independent.
func (e *Expression) IsStatic() bool {
	e.ensureCompiled()
	return e.chunk != nil && e.chunk.IsStatic
}

// Vector exposes the per-cycle result cache read-only, for diagnostics/UI.
func (e *Expression) Vector() []values.Number {
	return e.vector
}

// Result returns e's value at cycle t, compiling and computing on demand
// (spec §4.8). Static expressions and t<0 both collapse to t=0; a request
// past the end of the vector is UNDEFINED rather than an error, since the
// cycle driver's demand-pulling can legitimately probe ahead via look_ahead.
func (e *Expression) Result(ctx Context, t int) values.Number {
	e.ensureCompiled()
	if e.compileIssue != "" {
		return values.ErrInvalid
	}
	e.ensureVectorSized(ctx)
	if e.chunk.IsStatic {
		t = 0
	}
	if t < 0 {
		t = 0
	}
	if t >= len(e.vector) {
		return values.Undefined
	}
	return e.resultInternal(ctx, t)
}

// resultInternal is the cached-lookup-or-compute core, bypassing Result's
// t<0/static normalization — the entry point self-references use, since
// their out-of-range t must read as UNDEFINED rather than be folded to 0
// (spec §4.6 step 3, testable property 5).
func (e *Expression) resultInternal(ctx Context, t int) values.Number {
	switch e.vector[t] {
	case values.Computing:
		// Reentering at the same t: the cyclic-dependency protocol (spec
		// §4.8, §4.9, §9) — no explicit dependency graph needed.
		e.vector[t] = values.ErrCyclic
		return values.ErrCyclic
	case values.NotComputed:
		return e.computeAt(ctx, t)
	default:
		return e.vector[t]
	}
}

// computeAt runs the opcode loop for cycle t exactly once, marking the slot
// COMPUTING for the duration so a reentrant reference can detect the cycle.
func (e *Expression) computeAt(ctx Context, t int) values.Number {
	e.vector[t] = values.Computing
	e.step = append(e.step, t)
	ctx.PushFrame(e)
	result := e.run(ctx)
	e.step = e.step[:len(e.step)-1]
	ctx.PopFrame()

	switch {
	case e.vector[t] == values.Computing:
		e.vector[t] = result
	case values.IsError(result) && values.IsError(e.vector[t]):
		e.vector[t] = values.Severest(result, e.vector[t])
	default:
		e.vector[t] = result
	}

	if e.computeIssue == "" {
		if msg, ok := values.Message(e.vector[t]); ok {
			e.computeIssue = msg
		}
	}
	return e.vector[t]
}

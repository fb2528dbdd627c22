// Package engine is the Engine context and cycle driver for the
// expression engine (spec §4.9, §5, §9 Design Notes). It bundles the
// shared runtime state a solve pass needs — PRNG, simulated clock, call
// stack, run bounds, and the aspect registry — as explicit fields on one
// object, implementing internal/exprvm.Context, rather than as package
// globals.
package engine

import (
	"math/rand"
	"sync"

	"framexpr/internal/diagnostics"
	"framexpr/internal/exprparser"
	"framexpr/internal/exprvm"
	"framexpr/internal/model"
	"framexpr/internal/notify"
	"framexpr/internal/values"
)

// Engine drives one model's solve passes. It is not safe to share across
// concurrent solve calls — spec §5 specifies single-threaded, cooperative
// scheduling — but Halt may be called from another goroutine (e.g. a UI
// thread reacting to a Stop button), so that one field is mutex-guarded.
type Engine struct {
	Graph  *model.Graph
	Cache  *exprparser.Cache
	Issues *diagnostics.IssueList

	// Notifier is the optional live push channel (nil by default). A nil
	// Notifier is always a safe no-op — SolveModel never depends on it.
	Notifier *notify.Broadcaster

	runLength int
	lookAhead int

	rng    *rand.Rand
	clock  float64
	frames []*exprvm.Expression

	haltMu sync.Mutex
	halted bool

	registry map[string]*exprvm.Expression
}

// New builds an Engine over graph with the given run length, look-ahead
// window and PRNG seed. cache may be nil, in which case New creates a
// fresh cache for this Engine.
func New(graph *model.Graph, cache *exprparser.Cache, runLength, lookAhead int, seed int64) *Engine {
	if cache == nil {
		cache = exprparser.NewCache()
	}
	return &Engine{
		Graph:     graph,
		Cache:     cache,
		Issues:    diagnostics.NewIssueList(),
		runLength: runLength,
		lookAhead: lookAhead,
		rng:       rand.New(rand.NewSource(seed)),
		registry:  make(map[string]*exprvm.Expression),
	}
}

// Register binds aspect to a fresh Expression scoped against scope,
// replacing any previous registration for the same aspect ID.
func (e *Engine) Register(aspect *model.Aspect, scope []*model.Aspect) *exprvm.Expression {
	expr := exprvm.NewExpression(aspect, e.Graph, scope, e.Cache, e.staticOf)
	e.registry[aspect.ID] = expr
	return expr
}

// RegisterAll registers every aspect currently in the graph, scoped
// against whatever its owning function can see (Glossary: "Scope — the
// set of aspects visible to an expression, determined by connector
// terminations on its owning function").
func (e *Engine) RegisterAll() {
	for _, a := range e.Graph.Aspects() {
		var scope []*model.Aspect
		if a.Owner != nil {
			scope = e.Graph.Scope(a.Owner)
		}
		e.Register(a, scope)
	}
}

// staticOf lets the parser's static/dynamic folding (spec §4.3) ask
// whether an already-registered aspect is static, without the parser
// needing to know anything about Expression or the registry.
func (e *Engine) staticOf(aspectID string) (isStatic bool, known bool) {
	expr, ok := e.registry[aspectID]
	if !ok {
		return false, false
	}
	return expr.IsStatic(), true
}

// Expression looks up the registered Expression for an aspect ID.
func (e *Engine) Expression(aspectID string) (*exprvm.Expression, bool) {
	expr, ok := e.registry[aspectID]
	return expr, ok
}

// ResetAll re-initializes every registered expression's vector, clears the
// simulated clock and call stack, and un-halts the engine — the state a
// fresh solve pass starts from (spec §4.8 reset, §5 cancellation: "a
// reset after halt clears them").
func (e *Engine) ResetAll() {
	e.clock = 0
	e.frames = nil
	e.setHalted(false)
	for _, a := range e.Graph.Aspects() {
		expr, ok := e.registry[a.ID]
		if !ok {
			continue
		}
		def := values.NotComputed
		if a.HasResetDefault {
			def = values.Number(a.ResetDefault)
		}
		expr.Reset(e, def)
	}
}

// Halt requests the driver stop at the next cycle boundary (spec §5:
// "halted=true stops the driver at the next cycle boundary").
func (e *Engine) Halt() { e.setHalted(true) }

func (e *Engine) setHalted(v bool) {
	e.haltMu.Lock()
	e.halted = v
	e.haltMu.Unlock()
}

// Halted reports whether a Halt request is pending.
func (e *Engine) Halted() bool {
	e.haltMu.Lock()
	defer e.haltMu.Unlock()
	return e.halted
}

// The following methods satisfy internal/exprvm.Context.

func (e *Engine) RNG() *rand.Rand { return e.rng }

func (e *Engine) Clock() float64 { return e.clock }

func (e *Engine) AdvanceClock(dt float64) { e.clock += dt }

func (e *Engine) WaitUntil(target float64) {
	if target > e.clock {
		e.clock = target
	}
}

func (e *Engine) PushFrame(expr *exprvm.Expression) { e.frames = append(e.frames, expr) }

func (e *Engine) PopFrame() {
	if len(e.frames) == 0 {
		return
	}
	e.frames = e.frames[:len(e.frames)-1]
}

// CallStack snapshots the current call stack as diagnostics Frames, for
// attaching to an Issue when a runtime error is detected (spec §6: "call
// stack trace on first error per cycle").
func (e *Engine) CallStack(cycle int) []diagnostics.Frame {
	out := make([]diagnostics.Frame, len(e.frames))
	for i, f := range e.frames {
		name := ""
		id := ""
		if f.Aspect != nil {
			name = f.Aspect.Name
			id = f.Aspect.ID
		}
		out[i] = diagnostics.NewFrame(id, name, cycle)
	}
	return out
}

func (e *Engine) RunLength() int { return e.runLength }

func (e *Engine) LookAhead() int { return e.lookAhead }

func (e *Engine) Resolve(aspectID string) (*exprvm.Expression, bool) {
	expr, ok := e.registry[aspectID]
	return expr, ok
}

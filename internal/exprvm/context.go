// Package exprvm implements the Expression object and its stack VM: lazy,
// memoized, time-indexed evaluation of a compiled chunk (spec §3, §4.5-§4.8).
// It knows about opcodes and the model graph (for variable/statistic
// resolution) but nothing about the cycle driver — that is internal/engine's
// job, which supplies this package's Context.
package exprvm

import "math/rand"

// Context is everything an expression's opcode loop needs from the engine
// that owns it: the shared PRNG, the simulated clock, the diagnostic call
// stack, the run bounds, and the registry used to resolve a PUSH_VAR/
// PUSH_STATISTIC target aspect ID to its Expression (spec §9's "pass an
// Engine context explicitly through parse/compile/evaluate" design note).
type Context interface {
	RNG() *rand.Rand

	Clock() float64
	AdvanceClock(dt float64)
	WaitUntil(target float64)

	PushFrame(e *Expression)
	PopFrame()

	RunLength() int
	LookAhead() int

	// Resolve looks up the Expression owning aspectID, as registered by the
	// engine when the model was loaded.
	Resolve(aspectID string) (*Expression, bool)
}

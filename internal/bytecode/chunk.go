package bytecode

// DebugInfo attaches a source span to a compiled instruction, so a runtime
// error can point back at the offending substring of the original
// expression text instead of just an opcode offset.
type DebugInfo struct {
	Pos int // byte offset into the source expression text
	Len int
}

// RefKind distinguishes a plain variable reference from a statistic
// reference; both travel through a VarRef, since either form carries the
// same anchor/offset shape (spec §4.6, §4.7).
type RefKind byte

const (
	RefVar RefKind = iota
	RefStatistic
)

// VarRef is the resolved operand of a PUSH_VAR or PUSH_STATISTIC
// instruction: everything the evaluator needs to locate the referenced
// aspect(s) and the cycle(s) to read without re-parsing bracket text at
// run time.
type VarRef struct {
	Kind RefKind

	// Name is the aspect's resolved, scope-qualified identifier for a
	// RefVar; for RefStatistic it is unused in favor of Pattern.
	Name string

	// Statistic is one of MAX, MEAN, MIN, N, SD, SUM, VAR, each optionally
	// suffixed NZ (spec §4.7). Only meaningful for RefStatistic.
	Statistic string

	// Pattern is the wildcard match expression selecting which sibling
	// aspects feed the statistic ('?' any one char, '*' any run).
	Pattern string

	// Anchor1/Anchor2 are each 't' (cycle-relative), '#' (owner
	// tail-number relative) or 0 (absolute, no anchor); each offset in
	// "@off1:off2" carries its own anchor (spec §4.6 grammar: `off :=
	// anchor? int`).
	Anchor1 byte
	Offset1 int

	HasOffset2 bool
	Anchor2    byte
	Offset2    int

	// SelfRef marks a reference back to the aspect whose own expression
	// this is (the bracket text carried no name/statistic, only an
	// offset); only a strictly negative Offset1 (k>0 in "@t-k") is legal
	// on these (spec §3 invariant 4, §4.3).
	SelfRef bool
}

// Chunk is one compiled expression: the opcode stream, its number
// literals, and its resolved variable references, kept in three parallel
// tables so PUSH_NUMBER/PUSH_VAR/PUSH_STATISTIC operands are small
// fixed-width indices rather than inline floats or strings.
type Chunk struct {
	Code      []byte
	Constants []float64
	VarRefs   []VarRef
	Debug     []DebugInfo

	// Text is the normalized source this chunk was compiled from, kept for
	// compile_issue/compute_issue messages and for the compile cache key.
	Text string

	// IsStatic is true when the expression contains no clock/random
	// opcode and every variable reference in it is itself static, so it
	// folds to one constant value regardless of cycle (spec §4.3's AND-fold
	// of each opcode's own staticness).
	IsStatic bool
}

func NewChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) WriteOp(op OpCode, debug DebugInfo) {
	c.Code = append(c.Code, byte(op))
	c.Debug = append(c.Debug, debug)
}

func (c *Chunk) WriteByte(b byte, debug DebugInfo) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, debug)
}

// WriteJumpOperand reserves a 2-byte big-endian placeholder for a forward
// jump and returns its offset, so the caller can patch it once the jump
// target is known (teacher's compiler.go jump-patching pattern).
func (c *Chunk) WriteJumpOperand(debug DebugInfo) int {
	at := len(c.Code)
	c.WriteByte(0xFF, debug)
	c.WriteByte(0xFF, debug)
	return at
}

// PatchJump writes the distance from just after the 2-byte operand at at
// to the current end of the code, as a big-endian uint16.
func (c *Chunk) PatchJump(at int) {
	dist := len(c.Code) - at - 2
	c.Code[at] = byte(dist >> 8)
	c.Code[at+1] = byte(dist)
}

func (c *Chunk) AddConstant(v float64) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

func (c *Chunk) AddVarRef(ref VarRef) int {
	c.VarRefs = append(c.VarRefs, ref)
	return len(c.VarRefs) - 1
}

func (c *Chunk) GetDebugInfo(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}

package bytecode

// OpCode is one instruction of the compiled expression stack machine
// (spec §4.5). Every opcode is a single byte. Push opcodes that need an
// operand are followed by one more byte indexing into the owning Chunk's
// Constants or VarRefs table; the jump opcodes are followed by a 2-byte
// big-endian forward offset (see chunk.go).
type OpCode byte

const (
	// Stack / literal push
	OpPushNumber OpCode = iota
	OpPushVar              // operand: index into Chunk.VarRefs
	OpPushStatistic        // operand: index into Chunk.VarRefs (statistic kind + pattern)
	OpPushTimeStep         // t
	OpPushClockTime        // now
	OpPushContextual       // # — contextual tail number of the owning function's name
	OpPushPi
	OpPushInfinity
	OpPushTrue
	OpPushFalse
	OpPop

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpPower

	// Math functions (monadic)
	OpSqrt
	OpLn
	OpExp
	OpLog
	OpSin
	OpCos
	OpAtan
	OpRound
	OpInt
	OpFract
	OpAbs

	// Logic and comparison
	OpAnd
	OpOr
	OpNot
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual

	// Conditional control flow (ternary encoding, spec §4.3)
	OpJumpIfFalse // operand: 2-byte forward offset
	OpJump        // operand: 2-byte forward offset
	OpPopFalse    // discards the unused branch's leftover marker

	// Reduction / aggregation
	OpConcat // pops two operands and pushes their concatenation as one tuple
	OpMin
	OpMax

	// Random distributions (spec §4.5, §4.9 — engine PRNG, not a VM-local one)
	OpRandom      // uniform [0,1)
	OpExponential
	OpWeibull
	OpTriangular
	OpNormal
	OpBinomial
	OpPoisson

	// Undefined handling
	OpReplaceUndefined

	// Clock control
	OpWait
	OpWaitUntil
)

// String names an opcode for disassembly and compile_issue diagnostics.
func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}

var opNames = [...]string{
	"PUSH_NUMBER", "PUSH_VAR", "PUSH_STATISTIC", "PUSH_TIME_STEP", "PUSH_CLOCK_TIME",
	"PUSH_CONTEXTUAL", "PUSH_PI", "PUSH_INFINITY", "PUSH_TRUE", "PUSH_FALSE", "POP",
	"ADD", "SUB", "MUL", "DIV", "MOD", "NEGATE", "POWER",
	"SQRT", "LN", "EXP", "LOG", "SIN", "COS", "ATAN", "ROUND", "INT", "FRACT", "ABS",
	"AND", "OR", "NOT", "EQUAL", "NOT_EQUAL", "LESS", "GREATER", "LESS_EQUAL", "GREATER_EQUAL",
	"JUMP_IF_FALSE", "JUMP", "POP_FALSE",
	"CONCAT", "MIN", "MAX",
	"RANDOM", "EXPONENTIAL", "WEIBULL", "TRIANGULAR", "NORMAL", "BINOMIAL", "POISSON",
	"REPLACE_UNDEFINED",
	"WAIT", "WAIT_UNTIL",
}

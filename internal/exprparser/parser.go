// Package exprparser compiles FRAM aspect-expression text into a
// bytecode.Chunk: a shunting-yard-precedence parser (spec §4.3) emitting
// opcodes directly as it walks the token stream, binding every variable
// reference to a scope-resolved aspect along the way (rule S, spec §4.4).
package exprparser

import (
	"math"
	"strconv"
	"strings"

	"framexpr/internal/bytecode"
	"framexpr/internal/lexer"
	"framexpr/internal/model"
)

// CompileError is a syntax or reference error raised while compiling one
// aspect's expression text; it becomes that expression's compile_issue
// (spec §7).
type CompileError struct {
	Message string
	Pos     int
}

func (e *CompileError) Error() string { return e.Message }

// StaticLookup reports whether an already-compiled aspect is static. The
// parser AND-folds this into its own static/dynamic determination for
// every variable or statistic reference it compiles (spec §4.3); known
// is false when the aspect has not been compiled yet, in which case the
// parser conservatively treats the reference as dynamic.
type StaticLookup func(aspectID string) (isStatic, known bool)

// timeUnitSeconds is the reserved time-unit constant table (spec §4.2);
// seconds is the base unit the simulated clock advances in.
var timeUnitSeconds = map[string]float64{
	"S": 1, "M": 60, "H": 3600, "D": 86400, "WK": 604800, "YR": 31536000,
}

var scalarMonadic = map[string]bytecode.OpCode{
	"NOT": bytecode.OpNot, "ABS": bytecode.OpAbs, "SIN": bytecode.OpSin, "COS": bytecode.OpCos,
	"ATAN": bytecode.OpAtan, "LN": bytecode.OpLn, "EXP": bytecode.OpExp, "SQRT": bytecode.OpSqrt,
	"ROUND": bytecode.OpRound, "INT": bytecode.OpInt, "FRACT": bytecode.OpFract,
}

var reducingMonadic = map[string]bytecode.OpCode{
	"MIN": bytecode.OpMin, "MAX": bytecode.OpMax, "BINOMIAL": bytecode.OpBinomial,
	"EXPONENTIAL": bytecode.OpExponential, "NORMAL": bytecode.OpNormal,
	"POISSON": bytecode.OpPoisson, "TRIANGULAR": bytecode.OpTriangular, "WEIBULL": bytecode.OpWeibull,
}

// Parser walks a token stream emitting opcodes into chunk as it goes,
// in the teacher's precedence-climbing shape (its own current/match/check/
// consume utility methods), generalized from binary-expression precedence
// to this grammar's ten-level table including ternary and reduction.
type Parser struct {
	tokens []lexer.Token
	pos    int

	chunk *bytecode.Chunk
	graph *model.Graph
	scope []*model.Aspect
	self  *model.Aspect

	isStatic bool
	staticOf StaticLookup
}

// Compile tokenizes and compiles text into a Chunk, scoped against scope
// and (for self-references) self. staticOf may be nil, in which case every
// variable/statistic reference conservatively marks the expression
// dynamic.
func Compile(g *model.Graph, scope []*model.Aspect, self *model.Aspect, text string, staticOf StaticLookup) (*bytecode.Chunk, error) {
	toks, err := lexer.NewScanner(text).ScanTokens()
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}
	p := &Parser{
		tokens:   toks,
		chunk:    bytecode.NewChunk(),
		graph:    g,
		scope:    scope,
		self:     self,
		isStatic: true,
		staticOf: staticOf,
	}
	p.chunk.Text = text

	if err := p.run(); err != nil {
		return nil, err
	}
	p.chunk.IsStatic = p.isStatic
	return p.chunk, nil
}

func (p *Parser) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	p.parseExpr()
	if p.check(lexer.TokenRParen) {
		p.fail("Unmatched ')'")
	}
	if !p.check(lexer.TokenEOF) {
		p.fail("Unexpected token " + string(p.peek().Type))
	}
	return nil
}

func (p *Parser) fail(msg string) {
	panic(&CompileError{Message: msg, Pos: p.peek().Pos})
}

func (p *Parser) peek() lexer.Token   { return p.tokens[p.pos] }
func (p *Parser) isAtEnd() bool       { return p.peek().Type == lexer.TokenEOF }
func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.fail(msg)
	return lexer.Token{}
}

// identUpper returns the uppercased lexeme if the current token is an
// identifier, for case-insensitive keyword matching.
func (p *Parser) identUpper() (string, bool) {
	if p.check(lexer.TokenIdent) {
		return strings.ToUpper(p.peek().Lexeme), true
	}
	return "", false
}

func (p *Parser) emit(op bytecode.OpCode) {
	p.chunk.WriteOp(op, bytecode.DebugInfo{Pos: p.peek().Pos})
}

// --- precedence ladder, loosest (1, concat) to tightest (10, pipe) ---

func (p *Parser) parseExpr() { p.parseConcat() }

func (p *Parser) parseConcat() {
	p.parseTernary()
	for p.match(lexer.TokenSemicolon) {
		p.parseTernary()
		p.emit(bytecode.OpConcat)
	}
}

// parseTernary implements the spec's ternary encoding exactly (§4.3):
// code(c), JUMP_IF_FALSE->L1, code(a), JUMP->L2, L1: POP_FALSE, code(b), L2:
func (p *Parser) parseTernary() {
	p.parseOr()
	if !p.match(lexer.TokenQuestion) {
		return
	}
	p.emit(bytecode.OpJumpIfFalse)
	l1 := p.chunk.WriteJumpOperand(bytecode.DebugInfo{Pos: p.peek().Pos})

	p.parseTernary()

	p.emit(bytecode.OpJump)
	l2 := p.chunk.WriteJumpOperand(bytecode.DebugInfo{Pos: p.peek().Pos})

	p.chunk.PatchJump(l1)
	p.emit(bytecode.OpPopFalse)

	p.consume(lexer.TokenColon, "Expected ':' in ternary expression")
	p.parseTernary()

	p.chunk.PatchJump(l2)
}

func (p *Parser) parseOr() {
	p.parseAnd()
	for {
		if u, ok := p.identUpper(); !ok || u != "OR" {
			return
		}
		p.advance()
		p.parseAnd()
		p.emit(bytecode.OpOr)
	}
}

func (p *Parser) parseAnd() {
	p.parseComparison()
	for {
		if u, ok := p.identUpper(); !ok || u != "AND" {
			return
		}
		p.advance()
		p.parseComparison()
		p.emit(bytecode.OpAnd)
	}
}

func (p *Parser) parseComparison() {
	p.parseAddSub()
	for {
		var op bytecode.OpCode
		switch p.peek().Type {
		case lexer.TokenEqual:
			op = bytecode.OpEqual
		case lexer.TokenNotEqual:
			op = bytecode.OpNotEqual
		case lexer.TokenGT:
			op = bytecode.OpGreater
		case lexer.TokenLT:
			op = bytecode.OpLess
		case lexer.TokenGE:
			op = bytecode.OpGreaterEqual
		case lexer.TokenLE:
			op = bytecode.OpLessEqual
		default:
			return
		}
		p.advance()
		p.parseAddSub()
		p.emit(op)
	}
}

func (p *Parser) parseAddSub() {
	p.parseMulDivMod()
	for {
		var op bytecode.OpCode
		switch p.peek().Type {
		case lexer.TokenPlus:
			op = bytecode.OpAdd
		case lexer.TokenMinus:
			op = bytecode.OpSub
		default:
			return
		}
		p.advance()
		p.parseMulDivMod()
		p.emit(op)
	}
}

func (p *Parser) parseMulDivMod() {
	p.parsePow()
	for {
		var op bytecode.OpCode
		switch p.peek().Type {
		case lexer.TokenStar:
			op = bytecode.OpMul
		case lexer.TokenSlash:
			op = bytecode.OpDiv
		case lexer.TokenPercent:
			op = bytecode.OpMod
		default:
			return
		}
		p.advance()
		p.parsePow()
		p.emit(op)
	}
}

// parsePow handles binary `^` and `log` (priority 8). Associativity for
// these two is unspecified by the source; left-associative is chosen for
// consistency with every other binary level (see DESIGN.md).
func (p *Parser) parsePow() {
	p.parseMonadic()
	for {
		if p.check(lexer.TokenCaret) {
			p.advance()
			p.parseMonadic()
			p.emit(bytecode.OpPower)
			continue
		}
		if u, ok := p.identUpper(); ok && u == "LOG" {
			p.advance()
			p.parseMonadic()
			p.emit(bytecode.OpLog)
			continue
		}
		return
	}
}

// parseMonadic handles the priority-9 prefix keywords. Scalar math
// functions and negation bind right-associatively to the next monadic
// level (their own operand may itself be another monadic form); reducing
// functions (min, max, the probability distributions) instead take a
// full concat-level operand, so `min 3;7;2` collects the whole tuple
// rather than just `3` (spec §4.3's concat/reduce rule).
func (p *Parser) parseMonadic() {
	if p.check(lexer.TokenMinus) {
		p.advance()
		p.parseMonadic()
		p.emit(bytecode.OpNegate)
		return
	}
	if u, ok := p.identUpper(); ok {
		if op, isScalar := scalarMonadic[u]; isScalar {
			p.advance()
			p.parseMonadic()
			p.emit(op)
			return
		}
		if op, isReducing := reducingMonadic[u]; isReducing {
			p.advance()
			p.parseExpr()
			p.emit(op)
			return
		}
	}
	p.parsePipe()
}

func (p *Parser) parsePipe() {
	p.parseAtom()
	for p.match(lexer.TokenPipe) {
		p.parseAtom()
		p.emit(bytecode.OpReplaceUndefined)
	}
}

func (p *Parser) parseAtom() {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		p.emitNumber(tok)
		return
	case lexer.TokenLParen:
		p.advance()
		p.parseExpr()
		p.consume(lexer.TokenRParen, "Missing ')'")
		return
	case lexer.TokenRParen:
		p.fail("Unmatched ')'")
	case lexer.TokenVarRef:
		p.advance()
		p.emitVarRef(tok)
		return
	case lexer.TokenIdent, lexer.TokenHash:
		p.advance()
		p.emitSymbol(tok)
		return
	}
	p.fail("Unexpected token in expression")
}

func (p *Parser) emitNumber(tok lexer.Token) {
	lexeme := strings.Replace(tok.Lexeme, ",", ".", 1)
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		p.fail("Invalid number")
		return
	}
	v = clampLiteral(v)
	idx := p.chunk.AddConstant(v)
	p.emit(bytecode.OpPushNumber)
	p.chunk.WriteByte(byte(idx), bytecode.DebugInfo{Pos: tok.Pos})
}

// clampLiteral restricts a numeric literal to the representable range
// (MinusInfinity, PlusInfinity), per the lexer rule in spec §4.2. Using a
// plain float64 here (not values.Number) keeps the bytecode package free
// of a dependency on the value domain; the bound matches values.Plus/MinusInfinity.
func clampLiteral(v float64) float64 {
	const plusInfinity = 1e25
	const minusInfinity = -1e25
	if v >= plusInfinity {
		return plusInfinity
	}
	if v <= minusInfinity {
		return minusInfinity
	}
	return v
}

func (p *Parser) emitSymbol(tok lexer.Token) {
	switch strings.ToUpper(tok.Lexeme) {
	case "T":
		p.emit(bytecode.OpPushTimeStep)
		p.isStatic = false
	case "NOW":
		p.emit(bytecode.OpPushClockTime)
		p.isStatic = false
	case "RANDOM":
		p.emit(bytecode.OpRandom)
		p.isStatic = false
	case "TRUE":
		p.emit(bytecode.OpPushTrue)
	case "FALSE":
		p.emit(bytecode.OpPushFalse)
	case "PI":
		idx := p.chunk.AddConstant(math.Pi)
		p.emit(bytecode.OpPushNumber)
		p.chunk.WriteByte(byte(idx), bytecode.DebugInfo{Pos: tok.Pos})
	case "INFINITY":
		p.emit(bytecode.OpPushInfinity)
	case "#":
		p.emit(bytecode.OpPushContextual)
	default:
		if seconds, ok := timeUnitSeconds[strings.ToUpper(tok.Lexeme)]; ok {
			idx := p.chunk.AddConstant(seconds)
			p.emit(bytecode.OpPushNumber)
			p.chunk.WriteByte(byte(idx), bytecode.DebugInfo{Pos: tok.Pos})
			return
		}
		p.fail("Unknown symbol \"" + tok.Lexeme + "\"")
	}
}

func (p *Parser) emitVarRef(tok lexer.Token) {
	ref, err := p.parseVarRef(tok.Lexeme)
	if err != nil {
		p.fail(err.Error())
		return
	}

	if ref.Anchor1 == 't' || ref.Anchor2 == 't' {
		p.isStatic = false
	}

	switch ref.Kind {
	case bytecode.RefVar:
		if !ref.SelfRef && p.staticOf != nil {
			if isStatic, known := p.staticOf(ref.Name); !known || !isStatic {
				p.isStatic = false
			}
		} else if !ref.SelfRef {
			p.isStatic = false
		}
		idx := p.chunk.AddVarRef(ref)
		p.emit(bytecode.OpPushVar)
		p.chunk.WriteByte(byte(idx), bytecode.DebugInfo{Pos: tok.Pos})
	case bytecode.RefStatistic:
		sources := resolveSources(p.graph, p.scope, ref)
		if len(sources) == 0 {
			p.isStatic = false
		}
		for _, src := range sources {
			if p.staticOf == nil {
				p.isStatic = false
				break
			}
			if isStatic, known := p.staticOf(src.ID); !known || !isStatic {
				p.isStatic = false
				break
			}
		}
		idx := p.chunk.AddVarRef(ref)
		p.emit(bytecode.OpPushStatistic)
		p.chunk.WriteByte(byte(idx), bytecode.DebugInfo{Pos: tok.Pos})
	}
}

package exprvm

import (
	"math"

	"framexpr/internal/bytecode"
	"framexpr/internal/values"
)

// maxStack is the operand stack bound named in the Expression data model
// (spec §3). Exceeding it is a stack-shape anomaly — impossible for code
// this parser emits — and is treated as a fatal condition (spec §7).
const maxStack = 200

// stackValue is one operand stack slot. CONCAT is the only opcode that
// produces a tuple, and the reducing operators (min, max, the random
// distributions) are the only ones that consume one; any other opcode that
// meets a tuple treats it through asScalar.
type stackValue struct {
	n     values.Number
	tuple []values.Number // non-nil for a CONCAT-built tuple
}

func scalarVal(n values.Number) stackValue { return stackValue{n: n} }

func (v stackValue) isTuple() bool { return v.tuple != nil }

// asScalar coerces v for a binary/unary op that does not accept a tuple.
// A tuple reaches one of these when a parenthesized `;` chain is used as
// an ordinary operand (e.g. `(1;2)+3`); it then yields Invalid parameter
// list.
func (v stackValue) asScalar() values.Number {
	if v.tuple != nil {
		return values.ErrParams
	}
	return v.n
}

// elements flattens v to the list a reducing operator consumes: itself as a
// one-element list if v is a scalar, or its tuple's contents otherwise.
func (v stackValue) elements() []values.Number {
	if v.tuple != nil {
		return v.tuple
	}
	return []values.Number{v.n}
}

// vmFatal marks a stack-shape anomaly (impossible by construction for
// well-formed compiled code): it is recovered at the top of run and
// converted to the UNKNOWN_ERROR sentinel, never escaping as a panic to the
// caller (spec §7's "fatal conditions").
type vmFatal string

func (v vmFatal) Error() string { return string(v) }

func (e *Expression) push(v stackValue) {
	if len(e.stack) >= maxStack {
		panic(vmFatal("stack overflow"))
	}
	e.stack = append(e.stack, v)
}

func (e *Expression) pop() stackValue {
	if len(e.stack) == 0 {
		panic(vmFatal("stack underflow"))
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v
}

// run executes e.chunk's opcode stream for the cycle on top of e.step,
// handler by handler, touching only e's own stack (spec §4.5: "Handlers
// access only the owning expression's stack and step").
func (e *Expression) run(ctx Context) (result values.Number) {
	defer func() {
		if r := recover(); r != nil {
			result = values.ErrUnknownError
		}
	}()

	e.stack = e.stack[:0]
	t := e.step[len(e.step)-1]
	code := e.chunk.Code
	pc := 0
	if len(code) == 0 {
		// Empty expression text has nothing to evaluate.
		return values.Undefined
	}

	for pc < len(code) {
		op := bytecode.OpCode(code[pc])
		pc++

		switch op {
		case bytecode.OpPushNumber:
			idx := int(code[pc])
			pc++
			e.push(scalarVal(values.Number(e.chunk.Constants[idx])))

		case bytecode.OpPushVar:
			idx := int(code[pc])
			pc++
			e.push(scalarVal(e.evalPushVar(ctx, e.chunk.VarRefs[idx], t)))

		case bytecode.OpPushStatistic:
			idx := int(code[pc])
			pc++
			e.push(scalarVal(e.evalPushStatistic(ctx, e.chunk.VarRefs[idx], t)))

		case bytecode.OpPushTimeStep:
			e.push(scalarVal(values.Number(t)))

		case bytecode.OpPushClockTime:
			e.push(scalarVal(values.Number(ctx.Clock())))

		case bytecode.OpPushContextual:
			e.push(scalarVal(e.contextualNumber()))

		case bytecode.OpPushPi:
			e.push(scalarVal(values.Number(math.Pi)))

		case bytecode.OpPushInfinity:
			e.push(scalarVal(values.PlusInfinity))

		case bytecode.OpPushTrue:
			e.push(scalarVal(1))

		case bytecode.OpPushFalse:
			e.push(scalarVal(0))

		case bytecode.OpPop:
			e.pop()

		case bytecode.OpAdd:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(values.Combine(a.asScalar(), b.asScalar(), func(x, y float64) float64 { return x + y })))

		case bytecode.OpSub:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(values.Combine(a.asScalar(), b.asScalar(), func(x, y float64) float64 { return x - y })))

		case bytecode.OpMul:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(values.Combine(a.asScalar(), b.asScalar(), func(x, y float64) float64 { return x * y })))

		case bytecode.OpDiv:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(divOp(a.asScalar(), b.asScalar())))

		case bytecode.OpMod:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(modOp(a.asScalar(), b.asScalar())))

		case bytecode.OpNegate:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), func(x float64) float64 { return -x })))

		case bytecode.OpPower:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(values.Combine(a.asScalar(), b.asScalar(), math.Pow)))

		case bytecode.OpSqrt:
			v := e.pop()
			e.push(scalarVal(sqrtOp(v.asScalar())))

		case bytecode.OpLn:
			v := e.pop()
			e.push(scalarVal(lnOp(v.asScalar())))

		case bytecode.OpExp:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Exp)))

		case bytecode.OpLog:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(logOp(a.asScalar(), b.asScalar())))

		case bytecode.OpSin:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Sin)))

		case bytecode.OpCos:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Cos)))

		case bytecode.OpAtan:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Atan)))

		case bytecode.OpRound:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Round)))

		case bytecode.OpInt:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Trunc)))

		case bytecode.OpFract:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), func(x float64) float64 { return x - math.Trunc(x) })))

		case bytecode.OpAbs:
			v := e.pop()
			e.push(scalarVal(mapOp(v.asScalar(), math.Abs)))

		case bytecode.OpAnd:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(boolOp(a.asScalar(), b.asScalar(), func(x, y bool) bool { return x && y })))

		case bytecode.OpOr:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(boolOp(a.asScalar(), b.asScalar(), func(x, y bool) bool { return x || y })))

		case bytecode.OpNot:
			v := e.pop()
			e.push(scalarVal(notOp(v.asScalar())))

		case bytecode.OpEqual:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x == y })))

		case bytecode.OpNotEqual:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x != y })))

		case bytecode.OpLess:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x < y })))

		case bytecode.OpGreater:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x > y })))

		case bytecode.OpLessEqual:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x <= y })))

		case bytecode.OpGreaterEqual:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(cmpOp(a.asScalar(), b.asScalar(), func(x, y float64) bool { return x >= y })))

		case bytecode.OpJumpIfFalse:
			dist := int(code[pc])<<8 | int(code[pc+1])
			pc += 2
			top := e.stack[len(e.stack)-1]
			if truthy(top) {
				e.pop()
			} else if !top.isTuple() && values.IsError(top.n) {
				// An error condition is the value of the whole expression.
				return top.n
			} else {
				pc += dist
			}

		case bytecode.OpJump:
			dist := int(code[pc])<<8 | int(code[pc+1])
			pc += 2
			pc += dist

		case bytecode.OpPopFalse:
			e.pop()

		case bytecode.OpConcat:
			b, a := e.pop(), e.pop()
			e.push(concatValues(a, b))

		case bytecode.OpMin:
			v := e.pop()
			e.push(scalarVal(reduceMinMax(v.elements(), false)))

		case bytecode.OpMax:
			v := e.pop()
			e.push(scalarVal(reduceMinMax(v.elements(), true)))

		case bytecode.OpRandom:
			e.push(scalarVal(values.Number(ctx.RNG().Float64())))

		case bytecode.OpExponential:
			v := e.pop()
			e.push(scalarVal(exponentialDist(ctx.RNG(), v.elements())))

		case bytecode.OpWeibull:
			v := e.pop()
			e.push(scalarVal(weibullDist(ctx.RNG(), v.elements())))

		case bytecode.OpTriangular:
			v := e.pop()
			e.push(scalarVal(triangularDist(ctx.RNG(), v.elements())))

		case bytecode.OpNormal:
			v := e.pop()
			e.push(scalarVal(normalDist(ctx.RNG(), v.elements())))

		case bytecode.OpBinomial:
			v := e.pop()
			e.push(scalarVal(binomialDist(ctx.RNG(), v.elements())))

		case bytecode.OpPoisson:
			v := e.pop()
			e.push(scalarVal(poissonDist(ctx.RNG(), v.elements())))

		case bytecode.OpReplaceUndefined:
			b, a := e.pop(), e.pop()
			e.push(scalarVal(replaceUndefined(a.asScalar(), b.asScalar())))

		case bytecode.OpWait:
			v := e.pop()
			dt := float64(v.asScalar())
			if dt < 0 {
				dt = 0
			}
			ctx.AdvanceClock(dt)
			e.push(scalarVal(values.Number(ctx.Clock())))

		case bytecode.OpWaitUntil:
			v := e.pop()
			ctx.WaitUntil(float64(v.asScalar()))
			e.push(scalarVal(values.Number(ctx.Clock())))

		default:
			panic(vmFatal("unknown opcode"))
		}
	}

	if len(e.stack) != 1 {
		return values.ErrUnknownError
	}
	top := e.pop()
	if top.isTuple() {
		// A `;` chain nobody reduced (spec §4.3: "a ; that isn't consumed
		// by a reducer at end-of-expression fails with Invalid parameter
		// list").
		return values.ErrParams
	}
	return top.n
}

// truthy implements JUMP_IF_FALSE's notion of falsy: zero (within the
// near-zero guard), UNDEFINED, any other exception sentinel, or an error
// value are all falsy (spec §4.3, §7).
func truthy(v stackValue) bool {
	if v.isTuple() {
		return false
	}
	n := v.n
	if values.IsError(n) || values.IsException(n) {
		return false
	}
	return !values.IsZero(n)
}

func concatValues(a, b stackValue) stackValue {
	out := append(append([]values.Number(nil), a.elements()...), b.elements()...)
	return stackValue{tuple: out}
}

func reduceMinMax(vals []values.Number, wantMax bool) values.Number {
	if len(vals) == 0 {
		return values.Undefined
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if values.IsError(best) || values.IsError(v) {
			best = values.Combine(best, v, func(x, y float64) float64 {
				if wantMax {
					if x > y {
						return x
					}
					return y
				}
				if x < y {
					return x
				}
				return y
			})
			continue
		}
		if values.IsException(best) || values.IsException(v) {
			best = values.Undefined
			continue
		}
		if wantMax == (v > best) {
			best = v
		}
	}
	return best
}

func divOp(a, b values.Number) values.Number {
	if values.IsError(a) || values.IsError(b) {
		return values.Combine(a, b, func(x, y float64) float64 { return x / y })
	}
	if values.IsException(a) || values.IsException(b) {
		return values.Undefined
	}
	if values.IsZero(b) {
		return values.ErrDivZero
	}
	return values.Clamp(values.Number(float64(a) / float64(b)))
}

func modOp(a, b values.Number) values.Number {
	if values.IsError(a) || values.IsError(b) {
		return values.Combine(a, b, math.Mod)
	}
	if values.IsException(a) || values.IsException(b) {
		return values.Undefined
	}
	if values.IsZero(b) {
		return values.ErrDivZero
	}
	return values.Clamp(values.Number(math.Mod(float64(a), float64(b))))
}

func sqrtOp(v values.Number) values.Number {
	if values.IsError(v) {
		return v
	}
	if values.IsException(v) {
		return values.Undefined
	}
	if float64(v) < 0 {
		return values.ErrBadCalc
	}
	return values.Clamp(values.Number(math.Sqrt(float64(v))))
}

func lnOp(v values.Number) values.Number {
	if values.IsError(v) {
		return v
	}
	if values.IsException(v) {
		return values.Undefined
	}
	if float64(v) <= 0 {
		return values.ErrBadCalc
	}
	return values.Clamp(values.Number(math.Log(float64(v))))
}

// logOp implements `X log Y`, emitted as a binary op with a (=X, the base)
// pushed first and b (=Y) pushed second: `X log Y = ln Y / ln X` (spec §9).
func logOp(base, x values.Number) values.Number {
	if values.IsError(base) || values.IsError(x) {
		return values.Combine(base, x, func(bv, xv float64) float64 { return math.Log(xv) / math.Log(bv) })
	}
	if values.IsException(base) || values.IsException(x) {
		return values.Undefined
	}
	if float64(base) <= 0 || float64(base) == 1 || float64(x) <= 0 {
		return values.ErrBadCalc
	}
	return values.Clamp(values.Number(math.Log(float64(x)) / math.Log(float64(base))))
}

func mapOp(v values.Number, f func(float64) float64) values.Number {
	if values.IsError(v) {
		return v
	}
	if values.IsException(v) {
		return values.Undefined
	}
	return values.Clamp(values.Number(f(float64(v))))
}

func truthyFloat(x float64) bool {
	return math.Abs(x) > float64(values.NearZero)
}

func boolOp(a, b values.Number, f func(x, y bool) bool) values.Number {
	return values.Combine(a, b, func(x, y float64) float64 {
		if f(truthyFloat(x), truthyFloat(y)) {
			return 1
		}
		return 0
	})
}

func notOp(v values.Number) values.Number {
	if values.IsError(v) {
		return v
	}
	if values.IsException(v) {
		return values.Undefined
	}
	if truthyFloat(float64(v)) {
		return 0
	}
	return 1
}

func cmpOp(a, b values.Number, cmp func(x, y float64) bool) values.Number {
	return values.Combine(a, b, func(x, y float64) float64 {
		if cmp(x, y) {
			return 1
		}
		return 0
	})
}

// replaceUndefined is the one binary opcode that does not use values.Combine
// (spec §4.1, §4.5): only UNDEFINED, or ARRAY_INDEX demoted to UNDEFINED for
// this opcode alone, on the left triggers substitution; any other value
// including an error passes through unchanged.
func replaceUndefined(a, b values.Number) values.Number {
	left := a
	if left == values.ErrArrayIndex {
		left = values.Undefined
	}
	if left == values.Undefined {
		return b
	}
	return a
}

func (e *Expression) contextualNumber() values.Number {
	n, ok := e.contextualTail()
	if !ok {
		return values.Undefined
	}
	return values.Number(n)
}

func (e *Expression) contextualTail() (int, bool) {
	if e.Aspect == nil || e.Aspect.Owner == nil {
		return 0, false
	}
	return tailNumber(e.Aspect.Owner.Name)
}

// tailNumber extracts the run of trailing decimal digits from name, the
// "owner's tail number" anchor `#` resolves against (spec §4.2, §4.6).
func tailNumber(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n := 0
	for _, c := range name[i:] {
		n = n*10 + int(c-'0')
	}
	return n, true
}

package exprvm

import (
	"math"
	"strings"

	"framexpr/internal/bytecode"
	"framexpr/internal/values"
)

// resolveOffset implements one `anchor? int` offset term against caller
// cycle t (spec §4.6 step 1): anchor t is cycle-relative, anchor # is
// relative to the owning function's name's trailing digit run, and no anchor
// at all is an absolute cycle number. A `#` anchor with no trailing digits
// on the owner's name reports !ok, which the caller turns into UNDEFINED.
func (e *Expression) resolveOffset(anchor byte, offset, t int) (int, bool) {
	switch anchor {
	case 't':
		return t + offset, true
	case '#':
		tail, ok := e.contextualTail()
		if !ok {
			return 0, false
		}
		return tail + offset, true
	default:
		return offset, true
	}
}

// evalPushVar resolves one PUSH_VAR operand at cycle t (spec §4.6).
func (e *Expression) evalPushVar(ctx Context, ref bytecode.VarRef, t int) values.Number {
	target := e
	if !ref.SelfRef {
		other, ok := ctx.Resolve(ref.Name)
		if !ok {
			return values.ErrBadRef
		}
		target = other
	}

	t1, ok1 := target.resolveOffset(ref.Anchor1, ref.Offset1, t)
	if !ok1 {
		return values.Undefined
	}
	t2 := t1
	if ref.HasOffset2 {
		var ok2 bool
		t2, ok2 = target.resolveOffset(ref.Anchor2, ref.Offset2, t)
		if !ok2 {
			return values.Undefined
		}
	}
	rt := t1
	if t1 != t2 {
		rt = int(math.Floor(float64(t1+t2) / 2.0))
	}

	if ref.SelfRef {
		// No clamping for self-references; out of range is UNDEFINED, not
		// folded to cycle 0 the way Result's general t<0 rule would (spec
		// §4.6 step 3, testable property 5).
		target.ensureCompiled()
		target.ensureVectorSized(ctx)
		if rt < 0 || rt >= len(target.vector) {
			return values.Undefined
		}
		return target.resultInternal(ctx, rt)
	}

	lo, hi := 0, ctx.RunLength()+ctx.LookAhead()+1
	if rt < lo {
		rt = lo
	}
	if rt > hi {
		rt = hi
	}
	return target.Result(ctx, rt)
}

// evalPushStatistic resolves one PUSH_STATISTIC operand at cycle t
// (spec §4.7).
func (e *Expression) evalPushStatistic(ctx Context, ref bytecode.VarRef, t int) values.Number {
	sources := e.Graph.ResolveMatching(e.Scope, ref.Pattern)
	if len(sources) == 0 {
		// "0 if the source list is null/empty on construction" (spec §4.7).
		return 0
	}

	t1, ok1 := e.resolveOffset(ref.Anchor1, ref.Offset1, t)
	if !ok1 {
		return values.Undefined
	}
	t2 := t1
	if ref.HasOffset2 {
		var ok2 bool
		t2, ok2 = e.resolveOffset(ref.Anchor2, ref.Offset2, t)
		if !ok2 {
			return values.Undefined
		}
	}
	from, to := t1, t2
	if from > to {
		from, to = to, from
	}
	if from < 0 {
		from = 0
	}
	if to > ctx.RunLength() {
		to = ctx.RunLength()
	}
	if from > to {
		return values.Undefined
	}

	nz := strings.HasSuffix(ref.Statistic, "NZ")
	op := strings.TrimSuffix(ref.Statistic, "NZ")

	var raw []values.Number
	hasErr, worstErr := false, values.Number(0)
	for _, aspect := range sources {
		source, ok := ctx.Resolve(aspect.ID)
		if !ok {
			continue
		}
		for cyc := from; cyc <= to; cyc++ {
			v := source.Result(ctx, cyc)
			switch {
			case values.IsError(v):
				if !hasErr || v < worstErr {
					worstErr, hasErr = v, true
				}
			case v == values.PlusInfinity || v == values.MinusInfinity:
				// Infinite values are excluded from aggregation (spec §4.7).
			case values.IsException(v):
				// NOT_COMPUTED/COMPUTING/UNDEFINED/EXCEPTION are not data
				// points for a statistic; they are simply absent.
			default:
				raw = append(raw, v)
			}
		}
	}
	if hasErr {
		return worstErr
	}
	if len(raw) == 0 {
		return values.Undefined
	}

	vals := raw
	if nz {
		vals = make([]values.Number, 0, len(raw))
		for _, v := range raw {
			if !values.IsZero(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			// An NZ filter emptying an otherwise non-empty set reads as 0,
			// not UNDEFINED (spec §4.7 / §8 scenario 6: "empty non-zero
			// set → 0").
			return 0
		}
	}
	return aggregateStatistic(op, vals)
}

func aggregateStatistic(op string, vals []values.Number) values.Number {
	switch op {
	case "N":
		return values.Number(len(vals))
	case "MAX":
		return reduceMinMax(vals, true)
	case "MIN":
		return reduceMinMax(vals, false)
	case "SUM":
		return values.Clamp(values.Number(sumOf(vals)))
	case "MEAN":
		return values.Clamp(values.Number(sumOf(vals) / float64(len(vals))))
	case "VAR":
		return values.Clamp(values.Number(variance(vals)))
	case "SD":
		return values.Clamp(values.Number(math.Sqrt(variance(vals))))
	default:
		return values.ErrUnknownError
	}
}

func sumOf(vals []values.Number) float64 {
	var s float64
	for _, v := range vals {
		s += float64(v)
	}
	return s
}

// variance is the population variance of vals (no small-sample correction
// — the source statistic over a fixed, fully-observed cycle range is not
// sampling from a larger population).
func variance(vals []values.Number) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := sumOf(vals) / float64(len(vals))
	var acc float64
	for _, v := range vals {
		d := float64(v) - mean
		acc += d * d
	}
	return acc / float64(len(vals))
}

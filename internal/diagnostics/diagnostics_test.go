package diagnostics

import (
	"strings"
	"testing"

	"framexpr/internal/values"
)

func TestFromSentinelClassifiesKind(t *testing.T) {
	cases := []struct {
		v    values.Number
		want Kind
	}{
		{values.ErrDivZero, RuntimeNumeric},
		{values.ErrBadCalc, RuntimeNumeric},
		{values.ErrUnderflow, RuntimeNumeric},
		{values.ErrOverflow, RuntimeNumeric},
		{values.ErrCyclic, RuntimeStructural},
		{values.ErrArrayIndex, RuntimeStructural},
		{values.ErrParams, RuntimeStructural},
		{values.ErrBadRef, Reference},
		{values.Undefined, UndefinedPropagation},
	}
	for _, c := range cases {
		issue, ok := FromSentinel(c.v, "a1", "A", 3)
		if !ok {
			t.Fatalf("FromSentinel(%v) reported no issue", c.v)
		}
		if issue.Kind != c.want {
			t.Errorf("FromSentinel(%v).Kind = %v, want %v", c.v, issue.Kind, c.want)
		}
		if issue.Cycle != 3 || issue.AspectID != "a1" {
			t.Errorf("FromSentinel(%v) lost context: %+v", c.v, issue)
		}
	}
}

func TestFromSentinelIgnoresNormalAndInFlightValues(t *testing.T) {
	for _, v := range []values.Number{0, 1, -5, values.NotComputed, values.Computing} {
		if _, ok := FromSentinel(v, "a1", "A", 0); ok {
			t.Errorf("FromSentinel(%v) should report no issue", v)
		}
	}
}

func TestIssueErrorIncludesStack(t *testing.T) {
	issue, _ := FromSentinel(values.ErrDivZero, "a1", "A", 2)
	issue.WithStack([]Frame{NewFrame("a0", "B", 2), NewFrame("a1", "A", 2)})
	msg := issue.Error()
	if !strings.Contains(msg, "Division by zero") {
		t.Errorf("issue message missing text: %q", msg)
	}
	if !strings.Contains(msg, "B @t=2") || !strings.Contains(msg, "A @t=2") {
		t.Errorf("issue message missing call stack frames: %q", msg)
	}
}

func TestIssueListOrderingAndCycleIndex(t *testing.T) {
	l := NewIssueList()
	i1, _ := FromSentinel(values.ErrDivZero, "a1", "A", 1)
	i2, _ := FromSentinel(values.ErrBadRef, "a2", "B", 1)
	i3, _ := FromSentinel(values.ErrCyclic, "a1", "A", 2)
	l.Record(i1)
	l.Record(i2)
	l.Record(i3)
	l.Record(nil) // must be a no-op

	if got := l.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
	first, ok := l.First()
	if !ok || first != i1 {
		t.Errorf("First() = %v, want i1", first)
	}
	atOne := l.AtCycle(1)
	if len(atOne) != 2 || atOne[0] != i1 || atOne[1] != i2 {
		t.Errorf("AtCycle(1) = %v, want [i1 i2]", atOne)
	}
	cycles := l.Cycles()
	if len(cycles) != 2 || cycles[0] != 1 || cycles[1] != 2 {
		t.Errorf("Cycles() = %v, want [1 2]", cycles)
	}
}

func TestIssueListSummary(t *testing.T) {
	l := NewIssueList()
	if got := l.Summary(); got != "no issues" {
		t.Errorf("empty Summary() = %q, want %q", got, "no issues")
	}
	i1, _ := FromSentinel(values.ErrDivZero, "a1", "A", 0)
	l.Record(i1)
	if got := l.Summary(); !strings.Contains(got, "1 across 1 cycle") {
		t.Errorf("Summary() = %q, want it to mention 1 across 1 cycle", got)
	}
}

func TestCompileIssueHasNoCycle(t *testing.T) {
	issue := NewCompileIssue(Reference, "a1", "B", `Unknown aspect "B"`)
	if issue.Cycle != -1 {
		t.Errorf("compile issue Cycle = %d, want -1", issue.Cycle)
	}
	if issue.Kind != Reference {
		t.Errorf("compile issue Kind = %v, want Reference", issue.Kind)
	}
}

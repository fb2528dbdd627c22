package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"framexpr/internal/diagnostics"
	"framexpr/internal/notify"
)

// RunSummary reports the outcome of one SolveModel pass — the humanized
// counts a CLI or status line prints after a run (spec §6 outputs).
type RunSummary struct {
	CyclesRun int
	Halted    bool
	Issues    int
}

func (s *RunSummary) String() string {
	status := "completed"
	if s.Halted {
		status = "halted"
	}
	return fmt.Sprintf("%s after %s cycle(s), %s issue(s)",
		status, humanize.Comma(int64(s.CyclesRun)), humanize.Comma(int64(s.Issues)))
}

// SolveModel advances the cycle driver from t=1 to the engine's run
// length (spec §4.9). Call ResetAll first so every registered
// expression's vector starts NOT_COMPUTED (or seeded).
//
// Per cycle: compute the trigger sequence once up front (feedback
// couplings already make it cycle-free), then for each function in order
// and each of its output aspects call expression.Result(t) — this alone
// triggers demand-driven evaluation of every upstream dependency via
// PUSH_VAR/PUSH_STATISTIC. Halted is checked only between cycles (spec
// §5: "halt is observed only between cycles"), so a halt mid-cycle still
// lets that cycle finish.
func (e *Engine) SolveModel() (*RunSummary, error) {
	order, err := TriggerSequence(e.Graph)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	for t := 1; t <= e.runLength; t++ {
		if e.Halted() {
			summary.Halted = true
			break
		}
		for _, f := range order {
			for _, a := range e.Graph.OutputAspects(f) {
				expr, ok := e.registry[a.ID]
				if !ok {
					continue
				}
				v := expr.Result(e, t)
				e.Notifier.Publish(notify.ResultEvent(a.ID, a.Name, t, v))
				if issue, found := diagnostics.FromSentinel(v, a.ID, a.Name, t); found {
					issue.WithStack(e.CallStack(t))
					e.Issues.Record(issue)
					e.Notifier.Publish(notify.IssueEvent(issue))
				}
			}
		}
		e.Notifier.Publish(notify.CycleCompleteEvent(t))
		summary.CyclesRun = t
	}
	summary.Issues = e.Issues.Count()
	return summary, nil
}

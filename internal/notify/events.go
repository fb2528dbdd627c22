package notify

import (
	"framexpr/internal/diagnostics"
	"framexpr/internal/values"
)

// ResultEvent builds the event pushed each time an output aspect's
// result(t) is computed for a cycle.
func ResultEvent(aspectID, aspectName string, cycle int, v values.Number) Event {
	return Event{
		Type:       EventResult,
		Cycle:      cycle,
		AspectID:   aspectID,
		AspectName: aspectName,
		Value:      float64(v),
		Display:    values.Format(v),
	}
}

// IssueEvent builds the event pushed when the cycle driver records a
// diagnostics.Issue.
func IssueEvent(issue *diagnostics.Issue) Event {
	return Event{
		Type:       EventIssue,
		Cycle:      issue.Cycle,
		AspectID:   issue.AspectID,
		AspectName: issue.AspectName,
		Value:      float64(issue.Value),
		Display:    values.Format(issue.Value),
		Message:    issue.Message,
	}
}

// CycleCompleteEvent builds the event pushed once every output aspect in a
// cycle has been computed.
func CycleCompleteEvent(cycle int) Event {
	return Event{Type: EventCycleComplete, Cycle: cycle}
}

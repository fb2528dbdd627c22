package diagnostics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
)

// IssueList is the chronological, cycle-tagged record of every issue a run
// has produced (spec §7: "the UI displays aggregated issue count; user may
// step through issues which re-selects the cycle where each occurred").
// It is append-only and safe for concurrent recording from multiple
// aspects' compute calls within a single cycle.
type IssueList struct {
	mu    sync.Mutex
	items []*Issue
}

// NewIssueList returns an empty issue list.
func NewIssueList() *IssueList {
	return &IssueList{}
}

// Record appends issue to the list in the order received. A nil issue is
// ignored, so callers can write `list.Record(issue)` right after a
// `FromSentinel` call without an extra nil check.
func (l *IssueList) Record(issue *Issue) {
	if issue == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, issue)
}

// Count returns the total number of recorded issues.
func (l *IssueList) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// All returns a snapshot of every recorded issue, in recording order.
func (l *IssueList) All() []*Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Issue, len(l.items))
	copy(out, l.items)
	return out
}

// First returns the earliest recorded issue, matching §7's "first
// non-defined result stored in compute_issue" rule at the run level.
func (l *IssueList) First() (*Issue, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil, false
	}
	return l.items[0], true
}

// AtCycle returns every issue recorded at the given cycle, in recording
// order — the list a UI walks when the user "steps through issues" and
// re-selects a cycle.
func (l *IssueList) AtCycle(t int) []*Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Issue
	for _, it := range l.items {
		if it.Cycle == t {
			out = append(out, it)
		}
	}
	return out
}

// Cycles returns the sorted, de-duplicated list of cycles at which at
// least one issue was recorded (compile issues, tagged at Cycle -1, are
// excluded).
func (l *IssueList) Cycles() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[int]bool)
	var out []int
	for _, it := range l.items {
		if it.Cycle < 0 {
			continue
		}
		if !seen[it.Cycle] {
			seen[it.Cycle] = true
			out = append(out, it.Cycle)
		}
	}
	sort.Ints(out)
	return out
}

// Summary renders the aggregated count the UI's status line shows, e.g.
// "3 across 2 cycles".
func (l *IssueList) Summary() string {
	n := l.Count()
	if n == 0 {
		return "no issues"
	}
	cycles := len(l.Cycles())
	if cycles == 0 {
		return fmt.Sprintf("%s (compile-time)", humanize.Comma(int64(n)))
	}
	return fmt.Sprintf("%s across %s", humanize.Comma(int64(n)),
		pluralCycles(cycles))
}

func pluralCycles(n int) string {
	if n == 1 {
		return "1 cycle"
	}
	return fmt.Sprintf("%s cycles", humanize.Comma(int64(n)))
}

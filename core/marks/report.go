package marks

import (
	"fmt"
	"strings"
	"time"
)

// ItemResult is the outcome of the rollup of one student's internal total.
type ItemResult struct {
	Key   TotalKey
	Total InternalTotal
	Err   error
}

func (r ItemResult) OK() bool { return r.Err == nil }

// BlueprintResult is the outcome of the rollup of one Blueprint.
type BlueprintResult struct {
	Blueprint Blueprint
	Skipped   bool  // no sub-questions; nothing computed
	Err       error // the blueprint's marks could not be loaded
	Students  []ItemResult
}

func (r BlueprintResult) Failed() int {
	if r.Err != nil {
		return 1
	}
	var n int
	for _, it := range r.Students {
		if !it.OK() {
			n++
		}
	}
	return n
}

func (r BlueprintResult) Succeeded() int {
	var n int
	for _, it := range r.Students {
		if it.OK() {
			n++
		}
	}
	return n
}

// RunReport is the outcome of one RollupInternals run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Blueprints []BlueprintResult
}

// Succeeded counts the totals that were saved.
func (r RunReport) Succeeded() int {
	var n int
	for _, bp := range r.Blueprints {
		n += bp.Succeeded()
	}
	return n
}

// Failed counts the failed students plus the blueprints that could not be processed at all.
func (r RunReport) Failed() int {
	var n int
	for _, bp := range r.Blueprints {
		n += bp.Failed()
	}
	return n
}

// Skipped counts the blueprints without sub-questions.
func (r RunReport) Skipped() int {
	var n int
	for _, bp := range r.Blueprints {
		if bp.Skipped {
			n++
		}
	}
	return n
}

// Summary renders the report as plain text, one line per blueprint followed by each failure.
func (r RunReport) Summary() string {
	b := new(strings.Builder)
	_, _ = fmt.Fprintf(b, "Rollup %s\r\n", r.RunID)
	_, _ = fmt.Fprintf(b, "Started: %s - Finished: %s\r\n", r.StartedAt.Format(time.RFC1123Z), r.FinishedAt.Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(b, "Totals saved: %d - Failures: %d - Blueprints skipped: %d\r\n\r\n", r.Succeeded(), r.Failed(), r.Skipped())

	for _, bp := range r.Blueprints {
		switch {
		case bp.Skipped:
			_, _ = fmt.Fprintf(b, "- subject %s CIE %d: skipped (no sub-questions)\r\n", bp.Blueprint.SubjectID, bp.Blueprint.CIENo)
		case bp.Err != nil:
			_, _ = fmt.Fprintf(b, "- subject %s CIE %d: failed: %v\r\n", bp.Blueprint.SubjectID, bp.Blueprint.CIENo, bp.Err)
		default:
			_, _ = fmt.Fprintf(b, "- subject %s CIE %d: %d saved, %d failed\r\n", bp.Blueprint.SubjectID, bp.Blueprint.CIENo, bp.Succeeded(), bp.Failed())
			for _, it := range bp.Students {
				if !it.OK() {
					_, _ = fmt.Fprintf(b, "    * %s: %v\r\n", it.Key, it.Err)
				}
			}
		}
	}
	return b.String()
}

// ComponentItemResult is the outcome of the rollup of one student's component total.
type ComponentItemResult struct {
	Key   ComponentKey
	Total ComponentTotal
	Err   error
}

func (r ComponentItemResult) OK() bool { return r.Err == nil }

// ComponentReport is the outcome of one RollupComponents run.
type ComponentReport struct {
	RunID      string
	SubjectID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Students   []ComponentItemResult
}

func (r ComponentReport) Succeeded() int {
	var n int
	for _, it := range r.Students {
		if it.OK() {
			n++
		}
	}
	return n
}

func (r ComponentReport) Failed() int {
	return len(r.Students) - r.Succeeded()
}

package scraper

import "time"

type UnitKind string

const (
	UnitProfile  UnitKind = "profile"
	UnitActivity UnitKind = "activity"
)

type UnitState string

const (
	StatePending     UnitState = "PENDING"
	StateFetching    UnitState = "FETCHING"
	StateParsing     UnitState = "PARSING"
	StateReconciling UnitState = "RECONCILING"
	StateDone        UnitState = "DONE"
	StateSkipped     UnitState = "SKIPPED"
	StateFailed      UnitState = "FAILED"
)

// UnitResult is the outcome of one scrape unit. A failed unit keeps the
// state it died in plus the error.
type UnitResult struct {
	Kind  UnitKind
	Url   string
	State UnitState
	Err   error
}

// RunSummary accounts for every unit a run touched.
type RunSummary struct {
	Started  time.Time
	Finished time.Time
	Units    []UnitResult
}

func (s *RunSummary) record(kind UnitKind, url string, state UnitState, err error) {
	s.Units = append(s.Units, UnitResult{Kind: kind, Url: url, State: state, Err: err})
}

func (s RunSummary) count(state UnitState) int {
	n := 0
	for _, u := range s.Units {
		if u.State == state {
			n++
		}
	}
	return n
}

func (s RunSummary) Succeeded() int { return s.count(StateDone) }
func (s RunSummary) Skipped() int   { return s.count(StateSkipped) }

func (s RunSummary) Failed() []UnitResult {
	var out []UnitResult
	for _, u := range s.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

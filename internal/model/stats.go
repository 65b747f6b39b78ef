package model

import (
	"fmt"
	"time"
)

// State is the orchestrator state.
type State int

const (
	// StateIdle is the state before Run starts.
	StateIdle State = iota
	// StateHierarchyEnumerating walks the make/year/model tree.
	StateHierarchyEnumerating
	// StatePageCrawling visits application pages.
	StatePageCrawling
	// StateDetailFetching visits per-part detail pages.
	StateDetailFetching
	// StateExporting writes the artifacts.
	StateExporting
	// StateDone is the successful terminal state.
	StateDone
	// StateFailed is the failure terminal state.
	StateFailed
)

// String returns the state name as used in logs and reports.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHierarchyEnumerating:
		return "HIERARCHY_ENUMERATING"
	case StatePageCrawling:
		return "PAGE_CRAWLING"
	case StateDetailFetching:
		return "DETAIL_FETCHING"
	case StateExporting:
		return "EXPORTING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// RunStats summarises one orchestrator run.
type RunStats struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	State      State         `json:"state"`

	// Error holds the fatal error message when State is FAILED.
	Error string `json:"error,omitempty"`

	// Resumed is true when the run continued an incomplete checkpoint.
	Resumed bool `json:"resumed"`

	// Unchanged is true when the change gate found an identical hierarchy
	// and the run finished without crawling.
	Unchanged bool `json:"unchanged"`

	Fingerprint string `json:"fingerprint,omitempty"`

	// Hierarchy walk.
	ApplicationsDiscovered int `json:"applications_discovered"`
	HierarchyNodesSkipped  int `json:"hierarchy_nodes_skipped"`

	// Page crawling.
	ApplicationsVisited  int `json:"applications_visited"`
	ApplicationsSkipped  int `json:"applications_skipped"`
	ApplicationsNotFound int `json:"applications_not_found"`
	ApplicationsFailed   int `json:"applications_failed"`
	RowsSkipped          int `json:"rows_skipped"`
	ValidationFailures   int `json:"validation_failures"`

	// Registry outcomes.
	PartsCreated         int `json:"parts_created"`
	PartsUpdated         int `json:"parts_updated"`
	PartsRetained        int `json:"parts_retained"`
	UniqueSKUs           int `json:"unique_skus"`
	CompatibilityEntries int `json:"compatibility_entries"`

	// Detail fetching.
	DetailsFetched  int `json:"details_fetched"`
	DetailsSkipped  int `json:"details_skipped"`
	DetailsNotFound int `json:"details_not_found"`
	DetailsFailed   int `json:"details_failed"`
}

// Skipped returns the total number of units and rows that were skipped for
// any reason during the run.
func (s *RunStats) Skipped() int {
	return s.HierarchyNodesSkipped + s.ApplicationsNotFound + s.ApplicationsFailed +
		s.RowsSkipped + s.ValidationFailures + s.DetailsNotFound + s.DetailsFailed
}

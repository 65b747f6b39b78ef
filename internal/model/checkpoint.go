package model

import "time"

// CheckpointVersion is the current checkpoint format version.
const CheckpointVersion = 1

// Phase is the coarse progress marker stored in a checkpoint.
type Phase string

const (
	// PhaseHierarchy means application pages are being crawled.
	PhaseHierarchy Phase = "HIERARCHY"
	// PhaseDetails means per-SKU detail pages are being fetched.
	PhaseDetails Phase = "DETAILS"
	// PhaseComplete means the run finished and its artifacts were written.
	PhaseComplete Phase = "COMPLETE"
)

// Cursor is the last hierarchy position reached by the crawl.
type Cursor struct {
	Make  string `json:"make,omitempty"`
	Year  int    `json:"year,omitempty"`
	Model string `json:"model,omitempty"`
}

// Checkpoint is the durable record of run progress.
//
// Completed sets only grow during a run. A unit that failed permanently is
// recorded in both its completed set and its failed set so a resumed run does
// not retry it.
type Checkpoint struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Phase   Phase  `json:"phase"`

	CompletedApplicationIDs IntSet    `json:"completed_application_ids"`
	CompletedSKUs           StringSet `json:"completed_skus"`
	FailedApplicationIDs    IntSet    `json:"failed_application_ids"`
	FailedSKUs              StringSet `json:"failed_skus"`

	Cursor *Cursor `json:"cursor,omitempty"`

	// HierarchyFingerprint is the fingerprint of the hierarchy this run walked.
	HierarchyFingerprint string `json:"hierarchy_fingerprint,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewCheckpoint returns an empty checkpoint for a fresh run.
func NewCheckpoint(runID string, now time.Time) *Checkpoint {
	return &Checkpoint{
		Version:                 CheckpointVersion,
		RunID:                   runID,
		Phase:                   PhaseHierarchy,
		CompletedApplicationIDs: make(IntSet),
		CompletedSKUs:           make(StringSet),
		FailedApplicationIDs:    make(IntSet),
		FailedSKUs:              make(StringSet),
		StartedAt:               now,
		UpdatedAt:               now,
	}
}

// Normalize allocates any nil sets, e.g. after loading an older file.
func (c *Checkpoint) Normalize() {
	if c.CompletedApplicationIDs == nil {
		c.CompletedApplicationIDs = make(IntSet)
	}
	if c.CompletedSKUs == nil {
		c.CompletedSKUs = make(StringSet)
	}
	if c.FailedApplicationIDs == nil {
		c.FailedApplicationIDs = make(IntSet)
	}
	if c.FailedSKUs == nil {
		c.FailedSKUs = make(StringSet)
	}
	if c.Phase == "" {
		c.Phase = PhaseHierarchy
	}
}

// IsComplete reports whether the checkpoint belongs to a finished run.
func (c *Checkpoint) IsComplete() bool {
	return c.Phase == PhaseComplete
}

// PruneApplications drops completed and failed ids that are not in valid.
// It returns the number of ids removed.
func (c *Checkpoint) PruneApplications(valid IntSet) int {
	removed := 0
	for id := range c.CompletedApplicationIDs {
		if !valid.Has(id) {
			delete(c.CompletedApplicationIDs, id)
			removed++
		}
	}
	for id := range c.FailedApplicationIDs {
		if !valid.Has(id) {
			delete(c.FailedApplicationIDs, id)
		}
	}
	return removed
}

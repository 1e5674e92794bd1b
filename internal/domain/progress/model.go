package progress

import (
	"time"

	"github.com/google/uuid"
)

// Milestone is one mobilization step tracked after an operation.
type Milestone string

const (
	MilestoneSitting    Milestone = "sitting"
	MilestoneStanding   Milestone = "standing"
	MilestoneAmbulation Milestone = "ambulation"
)

// AllMilestones lists the milestones in clinical order.
var AllMilestones = []Milestone{MilestoneSitting, MilestoneStanding, MilestoneAmbulation}

func (m Milestone) Valid() bool {
	switch m {
	case MilestoneSitting, MilestoneStanding, MilestoneAmbulation:
		return true
	}
	return false
}

// ProgressStatus maps to the progress_status table: one row per
// (patient, milestone), rewritten on every recording.
type ProgressStatus struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Milestone   Milestone  `db:"milestone" json:"milestone"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DelayReason string     `db:"delay_reason" json:"delay_reason,omitempty"`
	RecordedAt  time.Time  `db:"recorded_at" json:"recorded_at"`
}

// Thresholds holds the per-milestone overdue windows, in hours after the
// operation. Values come from configuration, not code.
type Thresholds struct {
	Sitting    int
	Standing   int
	Ambulation int
}

// Hours returns the window for one milestone, or 0 for an unknown one.
func (t Thresholds) Hours(m Milestone) int {
	switch m {
	case MilestoneSitting:
		return t.Sitting
	case MilestoneStanding:
		return t.Standing
	case MilestoneAmbulation:
		return t.Ambulation
	}
	return 0
}

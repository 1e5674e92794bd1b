package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notifier receives milestone change events for live board updates.
type Notifier interface {
	ProgressChanged(s *ProgressStatus)
}

type Service struct {
	repo       Repository
	thresholds Thresholds
	notifier   Notifier
	now        func() time.Time
}

func NewService(repo Repository, thresholds Thresholds) *Service {
	return &Service{
		repo:       repo,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetClock overrides the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Record writes the patient's state for one milestone. A milestone reported
// as not completed must carry a delay reason so the board can show why.
func (s *Service) Record(ctx context.Context, st *ProgressStatus) error {
	if st.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !st.Milestone.Valid() {
		return fmt.Errorf("invalid milestone: %s", st.Milestone)
	}
	now := s.now()
	if st.Completed {
		st.DelayReason = ""
		if st.CompletedAt == nil {
			st.CompletedAt = &now
		}
	} else {
		if st.DelayReason == "" {
			return fmt.Errorf("delay_reason is required for an incomplete milestone")
		}
		st.CompletedAt = nil
	}
	st.RecordedAt = now

	if err := s.repo.Upsert(ctx, st); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.ProgressChanged(st)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ProgressStatus, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Overdue returns the milestones whose configured window after the operation
// has elapsed without a completed recording. Patients without an operation
// date are never overdue.
func (s *Service) Overdue(operationDate *time.Time, statuses []*ProgressStatus, now time.Time) []Milestone {
	if operationDate == nil {
		return nil
	}

	completed := make(map[Milestone]bool, len(statuses))
	for _, st := range statuses {
		if st.Completed {
			completed[st.Milestone] = true
		}
	}

	var out []Milestone
	for _, m := range AllMilestones {
		if completed[m] {
			continue
		}
		window := time.Duration(s.thresholds.Hours(m)) * time.Hour
		if window <= 0 {
			continue
		}
		if now.Sub(*operationDate) > window {
			out = append(out, m)
		}
	}
	return out
}

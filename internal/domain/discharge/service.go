package discharge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ValidationError rejects a plan before any commit is attempted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid discharge plan: %s: %s", e.Field, e.Msg)
}

// PatientRegistry is the slice of the patient service the discharge flow
// needs: marking a discharged patient inactive.
type PatientRegistry interface {
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Notifier receives plan change events for live board updates.
type Notifier interface {
	PlanChanged(p *DischargePlan)
}

type Service struct {
	repo     Repository
	registry PatientRegistry
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(repo Repository, registry PatientRegistry) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetClock overrides the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) patientLock(patientID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[patientID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[patientID] = l
	}
	return l
}

// Submit validates the plan and atomically supersedes the patient's current
// one. A plan with the final discharge option also deactivates the patient
// in the registry.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, plan *DischargePlan) (*DischargePlan, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	l := s.patientLock(patientID)
	l.Lock()
	defer l.Unlock()

	previous, err := s.repo.Current(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("read current plan: %w", err)
	}

	plan.ID = uuid.New()
	plan.PatientID = patientID
	plan.SubmittedAt = s.now()

	if err := s.repo.Supersede(ctx, previous, plan); err != nil {
		return nil, fmt.Errorf("commit plan: %w", err)
	}

	if plan.Option == OptionDischarge && s.registry != nil {
		if err := s.registry.Deactivate(ctx, patientID); err != nil {
			return nil, fmt.Errorf("deactivate discharged patient: %w", err)
		}
	}
	if s.notifier != nil {
		s.notifier.PlanChanged(plan)
	}
	return plan, nil
}

func (s *Service) Current(ctx context.Context, patientID uuid.UUID) (*DischargePlan, error) {
	return s.repo.Current(ctx, patientID)
}

func validatePlan(plan *DischargePlan) error {
	if !plan.Option.Valid() {
		return &ValidationError{Field: "option", Msg: "unknown option " + string(plan.Option)}
	}
	for name, c := range plan.Criteria {
		if !validCriterion(name) {
			return &ValidationError{Field: "criteria", Msg: "unknown criterion " + name}
		}
		if c.Checked && c.Time == nil {
			return &ValidationError{Field: name, Msg: "sign-off time is required"}
		}
	}
	if plan.Equipment[EquipmentOtherKey] && plan.EquipmentOther == "" {
		return &ValidationError{Field: "equipment", Msg: "other equipment requires detail"}
	}
	if !plan.Equipment[EquipmentOtherKey] {
		plan.EquipmentOther = ""
	}
	return nil
}

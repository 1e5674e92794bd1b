// Package board builds the read models behind the ward dashboard. It owns
// no storage: every card is composed from the patient registry, the alert
// snapshots, the therapy milestones and the discharge plans at read time.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/wardboard/wardboard/internal/domain/alerts"
	"github.com/wardboard/wardboard/internal/domain/discharge"
	"github.com/wardboard/wardboard/internal/domain/patient"
	"github.com/wardboard/wardboard/internal/domain/progress"
)

// PatientCard is one row of the board: the patient plus every live signal
// the dashboard renders for them.
type PatientCard struct {
	Patient      *patient.Patient           `json:"patient"`
	PostOpDay    int                        `json:"post_op_day"`
	LengthOfStay int                        `json:"length_of_stay"`
	Alerts       *alerts.AlertSnapshot      `json:"alerts,omitempty"`
	Progress     []*progress.ProgressStatus `json:"progress,omitempty"`
	Overdue      []progress.Milestone       `json:"overdue,omitempty"`
	Discharge    *discharge.DischargePlan   `json:"discharge,omitempty"`
}

// Summary is the board header: ward-level counts across active patients.
type Summary struct {
	TotalActive       int `json:"total_active"`
	DischargeToday    int `json:"discharge_today"`
	DischargeTomorrow int `json:"discharge_tomorrow"`
	PendingTherapy    int `json:"pending_therapy"`
}

type Service struct {
	patients  *patient.Service
	alerts    *alerts.Service
	progress  *progress.Service
	discharge *discharge.Service
	now       func() time.Time
}

func NewService(patients *patient.Service, alertSvc *alerts.Service, progressSvc *progress.Service, dischargeSvc *discharge.Service) *Service {
	return &Service{
		patients:  patients,
		alerts:    alertSvc,
		progress:  progressSvc,
		discharge: dischargeSvc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Board returns a card for every active patient, optionally narrowed to one
// building, in bed order.
func (s *Service) Board(ctx context.Context, building string) ([]*PatientCard, error) {
	patients, _, err := s.patients.List(ctx, patient.ListOptions{
		Building:   building,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	now := s.now()
	cards := make([]*PatientCard, 0, len(patients))
	for _, p := range patients {
		card, err := s.buildCard(ctx, p, now)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Card returns the board row for one patient, active or not.
func (s *Service) Card(ctx context.Context, p *patient.Patient) (*PatientCard, error) {
	return s.buildCard(ctx, p, s.now())
}

func (s *Service) buildCard(ctx context.Context, p *patient.Patient, now time.Time) (*PatientCard, error) {
	card := &PatientCard{
		Patient:      p,
		PostOpDay:    p.PostOpDay(now),
		LengthOfStay: p.LengthOfStay(now),
	}

	snap, err := s.alerts.Current(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("patient %s alerts: %w", p.ID, err)
	}
	card.Alerts = snap

	statuses, err := s.progress.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("patient %s progress: %w", p.ID, err)
	}
	card.Progress = statuses
	card.Overdue = s.progress.Overdue(p.OperationDate, statuses, now)

	plan, err := s.discharge.Current(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("patient %s discharge: %w", p.ID, err)
	}
	card.Discharge = plan

	return card, nil
}

// Summary computes the ward-level counts over every active patient.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	cards, err := s.Board(ctx, "")
	if err != nil {
		return nil, err
	}

	sum := &Summary{TotalActive: len(cards)}
	for _, card := range cards {
		if card.Discharge != nil {
			switch card.Discharge.Option {
			case discharge.OptionToday:
				sum.DischargeToday++
			case discharge.OptionTomorrow:
				sum.DischargeTomorrow++
			}
		}
		if hasPendingTherapy(card.Alerts) {
			sum.PendingTherapy++
		}
	}
	return sum, nil
}

// hasPendingTherapy reports whether a patient is somewhere in the therapy
// pipeline: preparation or readiness asserted, completion not.
func hasPendingTherapy(snap *alerts.AlertSnapshot) bool {
	if snap == nil {
		return false
	}
	if f, ok := snap.Field(alerts.FieldTherapyCompleted); ok && f.Active {
		return false
	}
	for _, label := range []alerts.FieldLabel{alerts.FieldPrepareTherapy, alerts.FieldReadyForTherapy} {
		if f, ok := snap.Field(label); ok && f.Active {
			return true
		}
	}
	return false
}

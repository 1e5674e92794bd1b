package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notifier receives patient change events for live board updates.
type Notifier interface {
	PatientChanged(p *Patient)
}

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Building == "" {
		return fmt.Errorf("building is required")
	}
	if p.AdmissionDate.IsZero() {
		p.AdmissionDate = time.Now().UTC()
	}
	if existing, err := s.repo.GetByMRN(ctx, p.MRN); err == nil && existing != nil {
		return fmt.Errorf("mrn %s already registered", p.MRN)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PatientChanged(p)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.repo.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PatientChanged(p)
	}
	return nil
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Patient, int, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) Buildings(ctx context.Context) ([]string, error) {
	return s.repo.Buildings(ctx)
}

// Deactivate marks a patient as off the ward. Snapshots and progress rows
// stay in place for audit.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	if s.notifier != nil {
		if p, err := s.repo.GetByID(ctx, id); err == nil {
			s.notifier.PatientChanged(p)
		}
	}
	return nil
}

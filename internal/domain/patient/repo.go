package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient id or MRN resolves to nothing.
var ErrNotFound = errors.New("patient not found")

// ListOptions narrows List results. Zero value lists every patient.
type ListOptions struct {
	Building   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, opts ListOptions) ([]*Patient, int, error)
	Buildings(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

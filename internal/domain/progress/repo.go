package progress

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert writes the patient's state for one milestone, replacing any
	// earlier recording of the same milestone.
	Upsert(ctx context.Context, s *ProgressStatus) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ProgressStatus, error)
}

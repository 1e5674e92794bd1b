package alerts

import (
	"context"

	"github.com/google/uuid"
)

// SnapshotRepository persists alert snapshots with single-current semantics:
// after any successful Supersede exactly one snapshot per patient satisfies
// the current query.
type SnapshotRepository interface {
	// Current returns the most recently submitted snapshot for a patient, or
	// (nil, nil) when the patient has none.
	Current(ctx context.Context, patientID uuid.UUID) (*AlertSnapshot, error)

	// History returns snapshots for a patient, newest first.
	History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AlertSnapshot, int, error)

	// Supersede atomically retires previous (nil for a first submission) and
	// installs next as the patient's current snapshot. If previous was
	// already retired by a racing writer the whole operation fails and next
	// is not installed.
	Supersede(ctx context.Context, previous, next *AlertSnapshot) error
}

package progress

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Upsert(ctx context.Context, s *ProgressStatus) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO progress_status (id, patient_id, milestone, completed, completed_at, delay_reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id, milestone) DO UPDATE SET
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at,
			delay_reason = EXCLUDED.delay_reason,
			recorded_at = EXCLUDED.recorded_at`,
		s.ID, s.PatientID, s.Milestone, s.Completed, s.CompletedAt, s.DelayReason, s.RecordedAt)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ProgressStatus, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, milestone, completed, completed_at, delay_reason, recorded_at
		FROM progress_status
		WHERE patient_id = $1
		ORDER BY CASE milestone
			WHEN 'sitting' THEN 1
			WHEN 'standing' THEN 2
			WHEN 'ambulation' THEN 3
		END`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []*ProgressStatus
	for rows.Next() {
		var s ProgressStatus
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Milestone, &s.Completed,
			&s.CompletedAt, &s.DelayReason, &s.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wardboard/wardboard/internal/platform/docstore"
)

// Collection is the document collection alert snapshots live in.
const Collection = "alert_snapshots"

type snapshotRepoDoc struct {
	store docstore.Store
}

// NewSnapshotRepo creates a SnapshotRepository backed by a document store.
func NewSnapshotRepo(store docstore.Store) SnapshotRepository {
	return &snapshotRepoDoc{store: store}
}

func currentFilters(patientID uuid.UUID) []docstore.Filter {
	return []docstore.Filter{
		{Field: "patientId", Op: docstore.OpEqual, Value: patientID.String()},
	}
}

func (r *snapshotRepoDoc) Current(ctx context.Context, patientID uuid.UUID) (*AlertSnapshot, error) {
	docs, err := r.store.Query(ctx, Collection, currentFilters(patientID),
		&docstore.Order{Field: "submittedAt", Desc: true}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeSnapshot(docs[0])
}

func (r *snapshotRepoDoc) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AlertSnapshot, int, error) {
	docs, err := r.store.Query(ctx, Collection, currentFilters(patientID),
		&docstore.Order{Field: "submittedAt", Desc: true}, 0)
	if err != nil {
		return nil, 0, err
	}

	total := len(docs)
	if offset >= total {
		return nil, total, nil
	}
	docs = docs[offset:]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	out := make([]*AlertSnapshot, 0, len(docs))
	for _, doc := range docs {
		s, err := decodeSnapshot(doc)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, nil
}

func (r *snapshotRepoDoc) Supersede(ctx context.Context, previous, next *AlertSnapshot) error {
	doc, err := encodeSnapshot(next)
	if err != nil {
		return err
	}

	batch := r.store.Batch()
	if previous != nil {
		batch.Delete(Collection, previous.ID.String())
	}
	batch.Set(doc)
	return batch.Commit(ctx)
}

func encodeSnapshot(s *AlertSnapshot) (docstore.Document, error) {
	// Round-trip the field map through JSON so nested timestamps land as
	// plain strings in the document data.
	raw, err := json.Marshal(s.Fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode snapshot fields: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("encode snapshot fields: %w", err)
	}

	return docstore.Document{
		Collection: Collection,
		ID:         s.ID.String(),
		Data: map[string]interface{}{
			"patientId":   s.PatientID.String(),
			"submittedAt": docstore.EncodeTime(s.SubmittedAt),
			"fields":      fields,
		},
	}, nil
}

func decodeSnapshot(doc docstore.Document) (*AlertSnapshot, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: bad id: %w", doc.ID, err)
	}

	pidStr, _ := doc.Data["patientId"].(string)
	pid, err := uuid.Parse(pidStr)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: bad patientId: %w", doc.ID, err)
	}

	tsStr, _ := doc.Data["submittedAt"].(string)
	submittedAt, err := docstore.DecodeTime(tsStr)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: bad submittedAt: %w", doc.ID, err)
	}

	s := &AlertSnapshot{
		ID:          id,
		PatientID:   pid,
		SubmittedAt: submittedAt,
		Fields:      make(map[FieldLabel]AlertField),
	}

	if rawFields, ok := doc.Data["fields"]; ok && rawFields != nil {
		raw, err := json.Marshal(rawFields)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: decode fields: %w", doc.ID, err)
		}
		if err := json.Unmarshal(raw, &s.Fields); err != nil {
			return nil, fmt.Errorf("snapshot %s: decode fields: %w", doc.ID, err)
		}
	}

	return s, nil
}

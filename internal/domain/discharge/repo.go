package discharge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wardboard/wardboard/internal/platform/docstore"
)

// Collection is the document collection discharge plans live in.
const Collection = "discharge_plans"

// Repository persists discharge plans with the same single-current contract
// as alert snapshots: at most one plan answers the current query.
type Repository interface {
	Current(ctx context.Context, patientID uuid.UUID) (*DischargePlan, error)
	Supersede(ctx context.Context, previous, next *DischargePlan) error
}

type repoDoc struct {
	store docstore.Store
}

func NewRepo(store docstore.Store) Repository {
	return &repoDoc{store: store}
}

func (r *repoDoc) Current(ctx context.Context, patientID uuid.UUID) (*DischargePlan, error) {
	docs, err := r.store.Query(ctx, Collection, []docstore.Filter{
		{Field: "patientId", Op: docstore.OpEqual, Value: patientID.String()},
	}, &docstore.Order{Field: "submittedAt", Desc: true}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodePlan(docs[0])
}

func (r *repoDoc) Supersede(ctx context.Context, previous, next *DischargePlan) error {
	doc, err := encodePlan(next)
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

func encodePlan(p *DischargePlan) (docstore.Document, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode plan: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return docstore.Document{}, fmt.Errorf("encode plan: %w", err)
	}
	// Top-level query fields use canonical encodings so filters and ordering
	// behave identically on both store backends.
	data["patientId"] = p.PatientID.String()
	data["submittedAt"] = docstore.EncodeTime(p.SubmittedAt)
	delete(data, "patient_id")
	delete(data, "submitted_at")

	return docstore.Document{
		Collection: Collection,
		ID:         p.ID.String(),
		Data:       data,
	}, nil
}

func decodePlan(doc docstore.Document) (*DischargePlan, error) {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", doc.ID, err)
	}
	var p DischargePlan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("plan %s: %w", doc.ID, err)
	}

	p.ID, err = uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("plan %s: bad id: %w", doc.ID, err)
	}
	pidStr, _ := doc.Data["patientId"].(string)
	p.PatientID, err = uuid.Parse(pidStr)
	if err != nil {
		return nil, fmt.Errorf("plan %s: bad patientId: %w", doc.ID, err)
	}
	tsStr, _ := doc.Data["submittedAt"].(string)
	p.SubmittedAt, err = docstore.DecodeTime(tsStr)
	if err != nil {
		return nil, fmt.Errorf("plan %s: bad submittedAt: %w", doc.ID, err)
	}
	return &p, nil
}

package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setDoc(t *testing.T, s *MemoryStore, collection, id string, data map[string]interface{}) {
	t.Helper()
	b := s.Batch()
	b.Set(Document{Collection: collection, ID: id, Data: data})
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "patients", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := NewMemoryStore()
	setDoc(t, s, "patients", "p1", map[string]interface{}{"name": "A", "isActive": true})

	doc, err := s.Get(context.Background(), "patients", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["name"] != "A" {
		t.Errorf("expected name A, got %v", doc.Data["name"])
	}
}

func TestMemoryStore_QueryFilterOrderLimit(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		setDoc(t, s, "snapshots", id, map[string]interface{}{
			"patientId":   "p1",
			"submittedAt": base.Add(time.Duration(i) * time.Hour),
		})
	}
	setDoc(t, s, "snapshots", "other", map[string]interface{}{
		"patientId":   "p2",
		"submittedAt": base.Add(10 * time.Hour),
	})

	docs, err := s.Query(context.Background(), "snapshots",
		[]Filter{{Field: "patientId", Op: OpEqual, Value: "p1"}},
		&Order{Field: "submittedAt", Desc: true}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0].ID != "s3" {
		t.Errorf("expected latest snapshot s3, got %s", docs[0].ID)
	}
}

func TestMemoryStore_BatchAtomicOnConflict(t *testing.T) {
	s := NewMemoryStore()
	setDoc(t, s, "snapshots", "old", map[string]interface{}{"patientId": "p1"})

	// Delete of a missing document must fail the whole batch, including the set.
	b := s.Batch()
	b.Delete("snapshots", "gone")
	b.Set(Document{Collection: "snapshots", ID: "new", Data: map[string]interface{}{"patientId": "p1"}})
	err := b.Commit(context.Background())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := s.Get(context.Background(), "snapshots", "new"); !errors.Is(err, ErrNotFound) {
		t.Error("set from failed batch must not be applied")
	}
	if _, err := s.Get(context.Background(), "snapshots", "old"); err != nil {
		t.Errorf("unrelated document must survive failed batch: %v", err)
	}
}

func TestMemoryStore_SupersedeDeleteInsert(t *testing.T) {
	s := NewMemoryStore()
	setDoc(t, s, "snapshots", "v1", map[string]interface{}{"patientId": "p1"})

	b := s.Batch()
	b.Delete("snapshots", "v1")
	b.Set(Document{Collection: "snapshots", ID: "v2", Data: map[string]interface{}{"patientId": "p1"}})
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	docs, err := s.Query(context.Background(), "snapshots",
		[]Filter{{Field: "patientId", Op: OpEqual, Value: "p1"}}, nil, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "v2" {
		t.Errorf("expected single current document v2, got %+v", docs)
	}
}

func TestMemoryStore_ConcurrentSupersedeLoses(t *testing.T) {
	s := NewMemoryStore()
	setDoc(t, s, "snapshots", "v1", map[string]interface{}{"patientId": "p1"})

	// Two writers read the same current snapshot; both try to supersede it.
	first := s.Batch()
	first.Delete("snapshots", "v1")
	first.Set(Document{Collection: "snapshots", ID: "v2", Data: map[string]interface{}{"patientId": "p1"}})

	second := s.Batch()
	second.Delete("snapshots", "v1")
	second.Set(Document{Collection: "snapshots", ID: "v3", Data: map[string]interface{}{"patientId": "p1"}})

	if err := first.Commit(context.Background()); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := second.Commit(context.Background()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected second commit to conflict, got %v", err)
	}

	docs, _ := s.Query(context.Background(), "snapshots",
		[]Filter{{Field: "patientId", Op: OpEqual, Value: "p1"}}, nil, 0)
	if len(docs) != 1 || docs[0].ID != "v2" {
		t.Errorf("expected v2 to remain current, got %+v", docs)
	}
}

func TestMemoryStore_ServerTimestampResolved(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	setDoc(t, s, "snapshots", "s1", map[string]interface{}{
		"patientId":   "p1",
		"submittedAt": s.ServerTimestamp(),
	})

	doc, err := s.Get(context.Background(), "snapshots", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, ok := doc.Data["submittedAt"].(string)
	if !ok {
		t.Fatalf("expected encoded timestamp string, got %T", doc.Data["submittedAt"])
	}
	parsed, err := DecodeTime(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !parsed.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, parsed)
	}
}

func TestMemoryStore_SubscribeDelivery(t *testing.T) {
	s := NewMemoryStore()

	var gotChanged []Document
	var gotRemoved []string
	sub := s.Subscribe("snapshots",
		[]Filter{{Field: "patientId", Op: OpEqual, Value: "p1"}},
		func(changed []Document, removed []string) {
			gotChanged = append(gotChanged, changed...)
			gotRemoved = append(gotRemoved, removed...)
		})
	defer sub.Cancel()

	setDoc(t, s, "snapshots", "v1", map[string]interface{}{"patientId": "p1"})
	setDoc(t, s, "snapshots", "x1", map[string]interface{}{"patientId": "p2"})

	if len(gotChanged) != 1 || gotChanged[0].ID != "v1" {
		t.Fatalf("expected only p1's document delivered, got %+v", gotChanged)
	}

	b := s.Batch()
	b.Delete("snapshots", "v1")
	b.Set(Document{Collection: "snapshots", ID: "v2", Data: map[string]interface{}{"patientId": "p1"}})
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(gotRemoved) != 1 || gotRemoved[0] != "v1" {
		t.Errorf("expected removal of v1 delivered, got %v", gotRemoved)
	}
	if len(gotChanged) != 2 || gotChanged[1].ID != "v2" {
		t.Errorf("expected v2 delivered, got %+v", gotChanged)
	}
}

func TestMemoryStore_SubscribeCancel(t *testing.T) {
	s := NewMemoryStore()
	calls := 0
	sub := s.Subscribe("snapshots", nil, func([]Document, []string) { calls++ })

	setDoc(t, s, "snapshots", "a", map[string]interface{}{"patientId": "p1"})
	sub.Cancel()
	setDoc(t, s, "snapshots", "b", map[string]interface{}{"patientId": "p1"})

	if calls != 1 {
		t.Errorf("expected 1 delivery after cancel, got %d", calls)
	}
}

func TestMemoryStore_DocumentsImmutableAfterCommit(t *testing.T) {
	s := NewMemoryStore()
	data := map[string]interface{}{"patientId": "p1", "fields": map[string]interface{}{"pain": true}}
	setDoc(t, s, "snapshots", "v1", data)

	// Mutating the caller's map must not reach the stored document.
	data["patientId"] = "tampered"

	doc, _ := s.Get(context.Background(), "snapshots", "v1")
	if doc.Data["patientId"] != "p1" {
		t.Error("stored document mutated through caller's map")
	}

	// Mutating a read copy must not reach the stored document either.
	doc.Data["patientId"] = "tampered"
	again, _ := s.Get(context.Background(), "snapshots", "v1")
	if again.Data["patientId"] != "p1" {
		t.Error("stored document mutated through read copy")
	}
}

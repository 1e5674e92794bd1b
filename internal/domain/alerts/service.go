package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier receives snapshot change events, typically the websocket hub.
type Notifier interface {
	SnapshotChanged(snapshot *AlertSnapshot)
}

type Service struct {
	repo     SnapshotRepository
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(repo SnapshotRepository) *Service {
	return &Service{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetNotifier attaches an optional change notifier to the service.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetClock overrides the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// patientLock serializes submissions per patient so that two writers in the
// same process cannot both read the same current snapshot and race on the
// supersede.
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

// Submit reconciles the caller's field intents against the patient's current
// snapshot and atomically replaces it, returning the new snapshot.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, intents map[FieldLabel]FieldIntent) (*AlertSnapshot, error) {
	l := s.patientLock(patientID)
	l.Lock()
	defer l.Unlock()

	previous, err := s.repo.Current(ctx, patientID)
	if err != nil {
		return nil, &ReadError{Err: err}
	}

	next, err := Reconcile(patientID, previous, intents, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Supersede(ctx, previous, next); err != nil {
		return nil, &CommitError{Err: err}
	}
	if s.notifier != nil {
		s.notifier.SnapshotChanged(next)
	}
	return next, nil
}

// EndActivity resolves every currently active field in the given label set,
// leaving the rest of the snapshot untouched. A nil result means nothing in
// the set was active.
func (s *Service) EndActivity(ctx context.Context, patientID uuid.UUID, labels []FieldLabel) (*AlertSnapshot, error) {
	for _, label := range labels {
		if !label.Valid() {
			return nil, &ValidationError{Field: label, Msg: "unknown alert field"}
		}
	}

	l := s.patientLock(patientID)
	l.Lock()
	defer l.Unlock()

	previous, err := s.repo.Current(ctx, patientID)
	if err != nil {
		return nil, &ReadError{Err: err}
	}

	next := ResolveGroup(patientID, previous, labels, s.now())
	if next == nil {
		return nil, nil
	}

	if err := s.repo.Supersede(ctx, previous, next); err != nil {
		return nil, &CommitError{Err: err}
	}
	if s.notifier != nil {
		s.notifier.SnapshotChanged(next)
	}
	return next, nil
}

// Current returns the patient's single authoritative snapshot, or nil when
// the patient has never had one.
func (s *Service) Current(ctx context.Context, patientID uuid.UUID) (*AlertSnapshot, error) {
	snap, err := s.repo.Current(ctx, patientID)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	return snap, nil
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AlertSnapshot, int, error) {
	snaps, total, err := s.repo.History(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, &ReadError{Err: err}
	}
	return snaps, total, nil
}

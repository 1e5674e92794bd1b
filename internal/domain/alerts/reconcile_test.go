package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	t2 = time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
)

func mustReconcile(t *testing.T, patientID uuid.UUID, prev *AlertSnapshot, intents map[FieldLabel]FieldIntent, now time.Time) *AlertSnapshot {
	t.Helper()
	next, err := Reconcile(patientID, prev, intents, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if next == nil {
		t.Fatal("Reconcile returned nil snapshot")
	}
	return next
}

func snapshotWith(patientID uuid.UUID, submittedAt time.Time, fields ...AlertField) *AlertSnapshot {
	s := &AlertSnapshot{
		ID:          uuid.New(),
		PatientID:   patientID,
		SubmittedAt: submittedAt,
		Fields:      make(map[FieldLabel]AlertField, len(fields)),
	}
	for _, f := range fields {
		s.Fields[f.Label] = f
	}
	return s
}

func activeField(label FieldLabel, since time.Time) AlertField {
	return AlertField{Label: label, Active: true, TriggeredAt: &since}
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

// First submission for a patient: a checked field triggers at now.
func TestReconcile_FirstSubmission(t *testing.T) {
	pid := uuid.New()
	next := mustReconcile(t, pid, nil, map[FieldLabel]FieldIntent{
		FieldPain: {Checked: true},
	}, t0)

	if next.PatientID != pid {
		t.Errorf("PatientID = %v, want %v", next.PatientID, pid)
	}
	if !next.SubmittedAt.Equal(t0) {
		t.Errorf("SubmittedAt = %v, want %v", next.SubmittedAt, t0)
	}
	f, ok := next.Field(FieldPain)
	if !ok {
		t.Fatal("pain field missing from result")
	}
	if !f.Active {
		t.Error("pain should be active")
	}
	if f.TriggeredAt == nil || !f.TriggeredAt.Equal(t0) {
		t.Errorf("TriggeredAt = %v, want %v", f.TriggeredAt, t0)
	}
	if f.ResolvedAt != nil {
		t.Errorf("ResolvedAt = %v, want nil", f.ResolvedAt)
	}
}

// Unchecking an active field stamps ResolvedAt and keeps TriggeredAt.
func TestReconcile_UncheckActiveField(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0, AlertField{
		Label: FieldOutOfWard, Active: true, TriggeredAt: &t0, Reason: "x-ray",
	})

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldOutOfWard: {Checked: false},
	}, t1)

	f, ok := next.Field(FieldOutOfWard)
	if !ok {
		t.Fatal("out_of_ward missing from result")
	}
	if f.Active {
		t.Error("out_of_ward should be inactive")
	}
	if f.TriggeredAt == nil || !f.TriggeredAt.Equal(t0) {
		t.Errorf("TriggeredAt = %v, want %v", f.TriggeredAt, t0)
	}
	if f.ResolvedAt == nil || !f.ResolvedAt.Equal(t1) {
		t.Errorf("ResolvedAt = %v, want %v", f.ResolvedAt, t1)
	}
	if f.Reason != "x-ray" {
		t.Errorf("Reason = %q, want preserved reason", f.Reason)
	}
}

// Completing therapy resolves the preparation fields even when the form left
// them untouched.
func TestReconcile_CompletionResolvesPrecursors(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0, activeField(FieldReadyForTherapy, t0))

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldTherapyCompleted: {Checked: true},
	}, t2)

	ready, ok := next.Field(FieldReadyForTherapy)
	if !ok {
		t.Fatal("ready_for_therapy missing from result")
	}
	if ready.Active {
		t.Error("ready_for_therapy should be resolved")
	}
	if ready.ResolvedAt == nil || !ready.ResolvedAt.Equal(t2) {
		t.Errorf("ready_for_therapy ResolvedAt = %v, want %v", ready.ResolvedAt, t2)
	}
	if ready.TriggeredAt == nil || !ready.TriggeredAt.Equal(t0) {
		t.Errorf("ready_for_therapy TriggeredAt = %v, want %v", ready.TriggeredAt, t0)
	}

	done, ok := next.Field(FieldTherapyCompleted)
	if !ok {
		t.Fatal("therapy_completed missing from result")
	}
	if !done.Active || done.TriggeredAt == nil || !done.TriggeredAt.Equal(t2) {
		t.Errorf("therapy_completed = %+v, want active triggered at %v", done, t2)
	}
}

// ResolveGroup resolves only the listed, active labels; the rest pass
// through unchanged.
func TestResolveGroup_PartialSet(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0,
		activeField(FieldPain, t0),
		activeField(FieldPrepareTherapy, t0),
	)

	next := ResolveGroup(pid, prev, []FieldLabel{FieldPain, FieldOutOfWard}, t1)
	if next == nil {
		t.Fatal("ResolveGroup returned nil with an active member in the set")
	}

	pain, _ := next.Field(FieldPain)
	if pain.Active || pain.ResolvedAt == nil || !pain.ResolvedAt.Equal(t1) {
		t.Errorf("pain = %+v, want resolved at %v", pain, t1)
	}
	if _, ok := next.Field(FieldOutOfWard); ok {
		t.Error("out_of_ward was never set and must stay absent")
	}
	prep, _ := next.Field(FieldPrepareTherapy)
	if !prep.Active || !prep.TriggeredAt.Equal(t0) {
		t.Errorf("prepare_therapy = %+v, want untouched", prep)
	}
}

func TestResolveGroup_NothingActive(t *testing.T) {
	pid := uuid.New()
	if got := ResolveGroup(pid, nil, []FieldLabel{FieldPain}, t1); got != nil {
		t.Errorf("ResolveGroup(nil previous) = %+v, want nil", got)
	}

	prev := snapshotWith(pid, t0, AlertField{Label: FieldPain, Active: false, TriggeredAt: &t0, ResolvedAt: &t0})
	if got := ResolveGroup(pid, prev, []FieldLabel{FieldPain}, t1); got != nil {
		t.Errorf("ResolveGroup(all resolved) = %+v, want nil", got)
	}
}

// --------------------------------------------------------------------------
// Properties
// --------------------------------------------------------------------------

// An already-active field that stays checked keeps its original trigger time.
func TestReconcile_TriggerOnce(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0, activeField(FieldPain, t0))

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldPain: {Checked: true},
	}, t1)

	f, _ := next.Field(FieldPain)
	if f.TriggeredAt == nil || !f.TriggeredAt.Equal(t0) {
		t.Errorf("TriggeredAt = %v, want original %v", f.TriggeredAt, t0)
	}
}

// A field that was never set and is unchecked does not appear in the result.
func TestReconcile_NoOpOmission(t *testing.T) {
	pid := uuid.New()
	next := mustReconcile(t, pid, nil, map[FieldLabel]FieldIntent{
		FieldPain:           {Checked: false},
		FieldPrepareTherapy: {Checked: true},
	}, t0)

	if _, ok := next.Field(FieldPain); ok {
		t.Error("unchecked never-set field must be omitted")
	}
	if _, ok := next.Field(FieldPrepareTherapy); !ok {
		t.Error("checked field must be present")
	}
}

// An already-resolved field that stays unchecked is dropped, not re-resolved.
func TestReconcile_ResolvedFieldStaysOmitted(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t1, AlertField{
		Label: FieldPain, Active: false, TriggeredAt: &t0, ResolvedAt: &t1,
	})

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldPain: {Checked: false},
	}, t2)

	if _, ok := next.Field(FieldPain); ok {
		t.Error("resolved field touched by an unchecked intent must be omitted")
	}
}

// Fields absent from the intent map carry forward byte for byte.
func TestReconcile_UntouchedFieldsPassThrough(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0,
		activeField(FieldOutOfWard, t0),
		AlertField{Label: FieldPain, Active: false, TriggeredAt: &t0, ResolvedAt: &t1},
	)

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldPrepareTherapy: {Checked: true},
	}, t2)

	oow, ok := next.Field(FieldOutOfWard)
	if !ok || !oow.Active || !oow.TriggeredAt.Equal(t0) {
		t.Errorf("out_of_ward = %+v, want carried forward active", oow)
	}
	pain, ok := next.Field(FieldPain)
	if !ok || pain.Active || !pain.ResolvedAt.Equal(t1) {
		t.Errorf("pain = %+v, want carried forward resolved", pain)
	}
}

// Re-submitting an unchanged form must not shift any trigger time.
func TestReconcile_IdempotentUnderNoChange(t *testing.T) {
	pid := uuid.New()
	intents := map[FieldLabel]FieldIntent{
		FieldPain:      {Checked: true},
		FieldOutOfWard: {Checked: true, Reason: "imaging"},
	}

	first := mustReconcile(t, pid, nil, intents, t0)
	second := mustReconcile(t, pid, first, intents, t1)

	if !second.SubmittedAt.Equal(t1) {
		t.Errorf("SubmittedAt = %v, want %v", second.SubmittedAt, t1)
	}
	for _, label := range []FieldLabel{FieldPain, FieldOutOfWard} {
		a, _ := first.Field(label)
		b, _ := second.Field(label)
		if !b.Active {
			t.Errorf("%s should still be active", label)
		}
		if b.TriggeredAt == nil || !b.TriggeredAt.Equal(*a.TriggeredAt) {
			t.Errorf("%s TriggeredAt shifted from %v to %v", label, a.TriggeredAt, b.TriggeredAt)
		}
	}
}

// --------------------------------------------------------------------------
// Grouped symptoms
// --------------------------------------------------------------------------

func TestReconcile_SymptomsAssertAndClear(t *testing.T) {
	pid := uuid.New()

	next := mustReconcile(t, pid, nil, map[FieldLabel]FieldIntent{
		FieldSymptoms: {Symptoms: []SymptomTag{SymptomFever, SymptomNausea}},
	}, t0)

	f, ok := next.Field(FieldSymptoms)
	if !ok || !f.Active {
		t.Fatalf("symptoms = %+v, want active", f)
	}
	if len(f.Symptoms) != 2 {
		t.Errorf("Symptoms = %v, want 2 tags", f.Symptoms)
	}

	// Emptying the set resolves the field but keeps the last tags for audit.
	cleared := mustReconcile(t, pid, next, map[FieldLabel]FieldIntent{
		FieldSymptoms: {},
	}, t1)
	f, ok = cleared.Field(FieldSymptoms)
	if !ok {
		t.Fatal("symptoms missing after clear")
	}
	if f.Active {
		t.Error("symptoms should be resolved")
	}
	if f.ResolvedAt == nil || !f.ResolvedAt.Equal(t1) {
		t.Errorf("ResolvedAt = %v, want %v", f.ResolvedAt, t1)
	}
	if len(f.Symptoms) != 2 {
		t.Errorf("resolved symptoms = %v, want last active set retained", f.Symptoms)
	}
}

// Dropping the "other" tag clears the free-text detail no matter what the
// form still carried in that box.
func TestReconcile_OtherDetailClearedWithTag(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0, AlertField{
		Label: FieldSymptoms, Active: true, TriggeredAt: &t0,
		Symptoms: []SymptomTag{SymptomOther}, OtherDetail: "rash on left arm",
	})

	next := mustReconcile(t, pid, prev, map[FieldLabel]FieldIntent{
		FieldSymptoms: {Symptoms: []SymptomTag{SymptomFever}, OtherDetail: "rash on left arm"},
	}, t1)

	f, _ := next.Field(FieldSymptoms)
	if f.OtherDetail != "" {
		t.Errorf("OtherDetail = %q, want cleared once other tag is gone", f.OtherDetail)
	}
	if f.TriggeredAt == nil || !f.TriggeredAt.Equal(t0) {
		t.Errorf("TriggeredAt = %v, want carried %v", f.TriggeredAt, t0)
	}
}

func TestReconcile_SymptomsDeduplicated(t *testing.T) {
	pid := uuid.New()
	next := mustReconcile(t, pid, nil, map[FieldLabel]FieldIntent{
		FieldSymptoms: {Symptoms: []SymptomTag{SymptomFever, SymptomFever, SymptomNausea}},
	}, t0)

	f, _ := next.Field(FieldSymptoms)
	want := []SymptomTag{SymptomFever, SymptomNausea}
	if len(f.Symptoms) != len(want) {
		t.Fatalf("Symptoms = %v, want %v", f.Symptoms, want)
	}
	for i := range want {
		if f.Symptoms[i] != want[i] {
			t.Errorf("Symptoms[%d] = %v, want %v", i, f.Symptoms[i], want[i])
		}
	}
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

func TestReconcile_Validation(t *testing.T) {
	pid := uuid.New()
	cases := []struct {
		name    string
		intents map[FieldLabel]FieldIntent
	}{
		{"unknown label", map[FieldLabel]FieldIntent{"bogus": {Checked: true}}},
		{"out_of_ward without reason", map[FieldLabel]FieldIntent{FieldOutOfWard: {Checked: true}}},
		{"other symptom without detail", map[FieldLabel]FieldIntent{
			FieldSymptoms: {Symptoms: []SymptomTag{SymptomOther}},
		}},
		{"unknown symptom tag", map[FieldLabel]FieldIntent{
			FieldSymptoms: {Symptoms: []SymptomTag{"sneezing"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reconcile(pid, nil, tc.intents, t0)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestReconcile_ReasonNotRequiredWhenUnchecking(t *testing.T) {
	pid := uuid.New()
	prev := snapshotWith(pid, t0, AlertField{
		Label: FieldOutOfWard, Active: true, TriggeredAt: &t0, Reason: "imaging",
	})

	if _, err := Reconcile(pid, prev, map[FieldLabel]FieldIntent{
		FieldOutOfWard: {Checked: false},
	}, t1); err != nil {
		t.Fatalf("unchecking must not demand a reason: %v", err)
	}
}

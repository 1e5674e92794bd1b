package alerts

import (
	"time"

	"github.com/google/uuid"
)

// precursorsOf maps a terminal field to the preparation fields it implicitly
// resolves: checking the terminal forces an unchecked intent on each
// precursor in the same submission, so they get proper resolved stamps.
var precursorsOf = map[FieldLabel][]FieldLabel{
	FieldTherapyCompleted: {FieldPrepareTherapy, FieldReadyForTherapy},
}

// reasonRequired lists fields whose checked state must carry a reason.
var reasonRequired = map[FieldLabel]bool{
	FieldOutOfWard: true,
}

// Reconcile computes the next snapshot for a patient from the previous
// current snapshot (nil for a first submission) and the submitted field
// intents. It is pure: storage is untouched, and the caller commits the
// result atomically via SnapshotRepository.Supersede.
//
// Per-field rules:
//   - checked, previously inactive or absent: active with TriggeredAt=now.
//   - checked, previously active: active with TriggeredAt carried forward
//     (an already-active field does not re-trigger).
//   - unchecked, previously active: inactive with ResolvedAt=now and
//     TriggeredAt carried forward.
//   - unchecked, previously absent or already inactive: omitted from the
//     result entirely.
//
// Fields present in the previous snapshot but absent from the intent map
// pass through unchanged.
func Reconcile(patientID uuid.UUID, previous *AlertSnapshot, intents map[FieldLabel]FieldIntent, now time.Time) (*AlertSnapshot, error) {
	if err := validateIntents(intents); err != nil {
		return nil, err
	}

	merged := make(map[FieldLabel]FieldIntent, len(intents))
	for label, intent := range intents {
		merged[label] = intent
	}

	// Completion supersedes preparation: apply before building the field map
	// so precursors resolve with proper timestamps even when the form left
	// them untouched or still checked.
	for terminal, precursors := range precursorsOf {
		if intent, ok := merged[terminal]; ok && intent.Checked {
			for _, p := range precursors {
				merged[p] = FieldIntent{Checked: false}
			}
		}
	}

	next := &AlertSnapshot{
		ID:          uuid.New(),
		PatientID:   patientID,
		SubmittedAt: now,
		Fields:      make(map[FieldLabel]AlertField),
	}

	// Untouched fields carry forward as-is.
	if previous != nil {
		for label, f := range previous.Fields {
			if _, touched := merged[label]; !touched {
				next.Fields[label] = f
			}
		}
	}

	for label, intent := range merged {
		prev, hadPrev := previous.Field(label)

		if label == FieldSymptoms {
			if f, keep := reconcileSymptoms(prev, hadPrev, intent, now); keep {
				next.Fields[label] = f
			}
			continue
		}

		if intent.Checked {
			f := AlertField{Label: label, Active: true, Reason: intent.Reason}
			if hadPrev && prev.Active {
				f.TriggeredAt = prev.TriggeredAt
			} else {
				t := now
				f.TriggeredAt = &t
			}
			next.Fields[label] = f
			continue
		}

		if hadPrev && prev.Active {
			t := now
			next.Fields[label] = AlertField{
				Label:       label,
				Active:      false,
				TriggeredAt: prev.TriggeredAt,
				ResolvedAt:  &t,
				Reason:      prev.Reason,
			}
		}
		// Never set, or already resolved: no-op state is not persisted.
	}

	return next, nil
}

// reconcileSymptoms applies the standard rules to the grouped field as a
// whole, keyed on the selected set being non-empty. OtherDetail survives
// only while the "other" tag is a member of the set.
func reconcileSymptoms(prev AlertField, hadPrev bool, intent FieldIntent, now time.Time) (AlertField, bool) {
	selected := normalizeSymptoms(intent.Symptoms)

	if len(selected) > 0 {
		f := AlertField{Label: FieldSymptoms, Active: true, Symptoms: selected}
		if hasSymptom(selected, SymptomOther) {
			f.OtherDetail = intent.OtherDetail
		}
		if hadPrev && prev.Active {
			f.TriggeredAt = prev.TriggeredAt
		} else {
			t := now
			f.TriggeredAt = &t
		}
		return f, true
	}

	if hadPrev && prev.Active {
		t := now
		return AlertField{
			Label:       FieldSymptoms,
			Active:      false,
			TriggeredAt: prev.TriggeredAt,
			ResolvedAt:  &t,
			Symptoms:    prev.Symptoms,
		}, true
	}

	return AlertField{}, false
}

// ResolveGroup returns a snapshot with every listed label that is active in
// previous resolved at now; everything else passes through unchanged. It
// backs the "end activity" action and, like Reconcile, never touches storage.
// Returns nil when no listed label is active, so the caller can skip the
// supersede entirely.
func ResolveGroup(patientID uuid.UUID, previous *AlertSnapshot, labels []FieldLabel, now time.Time) *AlertSnapshot {
	if previous == nil {
		return nil
	}

	resolve := make(map[FieldLabel]bool, len(labels))
	for _, l := range labels {
		resolve[l] = true
	}

	touched := false
	next := &AlertSnapshot{
		ID:          uuid.New(),
		PatientID:   patientID,
		SubmittedAt: now,
		Fields:      make(map[FieldLabel]AlertField),
	}

	for label, f := range previous.Fields {
		if resolve[label] && f.Active {
			t := now
			f.Active = false
			f.ResolvedAt = &t
			touched = true
		}
		next.Fields[label] = f
	}

	if !touched {
		return nil
	}
	return next
}

func validateIntents(intents map[FieldLabel]FieldIntent) error {
	for label, intent := range intents {
		if !label.Valid() {
			return &ValidationError{Field: label, Msg: "unknown field"}
		}

		if label == FieldSymptoms {
			selected := normalizeSymptoms(intent.Symptoms)
			for _, tag := range selected {
				if !tag.Valid() {
					return &ValidationError{Field: label, Msg: "unknown symptom tag " + string(tag)}
				}
			}
			if hasSymptom(selected, SymptomOther) && intent.OtherDetail == "" {
				return &ValidationError{Field: label, Msg: "other symptom requires detail"}
			}
			continue
		}

		if intent.Checked && reasonRequired[label] && intent.Reason == "" {
			return &ValidationError{Field: label, Msg: "reason is required"}
		}
	}
	return nil
}

// normalizeSymptoms deduplicates tags preserving first-seen order.
func normalizeSymptoms(tags []SymptomTag) []SymptomTag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[SymptomTag]bool, len(tags))
	out := make([]SymptomTag, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func hasSymptom(tags []SymptomTag, want SymptomTag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

package alerts

import (
	"time"

	"github.com/google/uuid"
)

// FieldLabel identifies one tracked alert condition. The set is closed:
// snapshots never carry labels outside it.
type FieldLabel string

const (
	FieldPrepareTherapy   FieldLabel = "prepare_therapy"
	FieldReadyForTherapy  FieldLabel = "ready_for_therapy"
	FieldTherapyCompleted FieldLabel = "therapy_completed"
	FieldPain             FieldLabel = "pain"
	FieldOutOfWard        FieldLabel = "out_of_ward"
	FieldSymptoms         FieldLabel = "symptoms"
)

// AllFieldLabels lists every valid label in display order.
var AllFieldLabels = []FieldLabel{
	FieldPrepareTherapy,
	FieldReadyForTherapy,
	FieldTherapyCompleted,
	FieldPain,
	FieldOutOfWard,
	FieldSymptoms,
}

func (l FieldLabel) Valid() bool {
	for _, known := range AllFieldLabels {
		if l == known {
			return true
		}
	}
	return false
}

// SymptomTag is one member of the grouped symptom field's value set.
type SymptomTag string

const (
	SymptomFever     SymptomTag = "fever"
	SymptomDizziness SymptomTag = "dizziness"
	SymptomNausea    SymptomTag = "nausea"
	SymptomSwelling  SymptomTag = "swelling"
	SymptomOther     SymptomTag = "other"
)

var allSymptomTags = []SymptomTag{
	SymptomFever, SymptomDizziness, SymptomNausea, SymptomSwelling, SymptomOther,
}

func (s SymptomTag) Valid() bool {
	for _, known := range allSymptomTags {
		if s == known {
			return true
		}
	}
	return false
}

// AlertField is the persisted state of one condition inside a snapshot.
// TriggeredAt is set on the false-to-true transition and carried forward
// while the field stays active; ResolvedAt is stamped on the true-to-false
// transition with TriggeredAt preserved for audit display.
type AlertField struct {
	Label       FieldLabel   `json:"label"`
	Active      bool         `json:"active"`
	TriggeredAt *time.Time   `json:"triggered_at,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Symptoms    []SymptomTag `json:"symptoms,omitempty"`
	OtherDetail string       `json:"other_detail,omitempty"`
}

// AlertSnapshot is the unit of persistence: every touched field's state for
// one patient as of one submission. Snapshots are immutable once committed;
// edits produce a new snapshot that atomically supersedes this one. Absence
// of a label means "never set", which is distinct from active=false.
type AlertSnapshot struct {
	ID          uuid.UUID                 `json:"id"`
	PatientID   uuid.UUID                 `json:"patient_id"`
	SubmittedAt time.Time                 `json:"submitted_at"`
	Fields      map[FieldLabel]AlertField `json:"fields"`
}

// Field returns the state of one label, if the snapshot carries it.
func (s *AlertSnapshot) Field(label FieldLabel) (AlertField, bool) {
	if s == nil {
		return AlertField{}, false
	}
	f, ok := s.Fields[label]
	return f, ok
}

// ActiveLabels returns the labels currently asserted, in display order.
func (s *AlertSnapshot) ActiveLabels() []FieldLabel {
	if s == nil {
		return nil
	}
	var out []FieldLabel
	for _, label := range AllFieldLabels {
		if f, ok := s.Fields[label]; ok && f.Active {
			out = append(out, label)
		}
	}
	return out
}

// FieldIntent is a user's declared state for one field on a submitted form.
// For the grouped symptom field, Checked is ignored and the field counts as
// asserted while Symptoms is non-empty.
type FieldIntent struct {
	Checked     bool         `json:"checked"`
	Reason      string       `json:"reason,omitempty"`
	Symptoms    []SymptomTag `json:"symptoms,omitempty"`
	OtherDetail string       `json:"other_detail,omitempty"`
}

package discharge

import (
	"time"

	"github.com/google/uuid"
)

// Option is the planned discharge timing. Empty means no plan yet.
type Option string

const (
	OptionNone      Option = ""
	OptionToday     Option = "today"
	OptionTomorrow  Option = "tomorrow"
	OptionDischarge Option = "discharge"
)

func (o Option) Valid() bool {
	switch o {
	case OptionNone, OptionToday, OptionTomorrow, OptionDischarge:
		return true
	}
	return false
}

// Criterion names for discharge clearance. Each requires a recorded time
// when checked: the board shows who cleared the patient and when.
const (
	CriterionOrthopedist       = "orthopedist"
	CriterionGeriatric         = "geriatric"
	CriterionPhysicalTherapist = "physical_therapist"
)

// AllCriteria lists the clearance criteria in display order.
var AllCriteria = []string{CriterionOrthopedist, CriterionGeriatric, CriterionPhysicalTherapist}

func validCriterion(name string) bool {
	for _, c := range AllCriteria {
		if name == c {
			return true
		}
	}
	return false
}

// Criterion is one clearance checkbox with its sign-off time.
type Criterion struct {
	Checked bool       `json:"checked"`
	Time    *time.Time `json:"time,omitempty"`
}

// EquipmentOther is the equipment key whose selection needs free text.
const EquipmentOtherKey = "other"

// DischargePlan is the latest-wins planning document for one patient,
// superseded whole on every submission like an alert snapshot.
type DischargePlan struct {
	ID             uuid.UUID            `json:"id"`
	PatientID      uuid.UUID            `json:"patient_id"`
	SubmittedAt    time.Time            `json:"submitted_at"`
	Option         Option               `json:"option"`
	Criteria       map[string]Criterion `json:"criteria,omitempty"`
	Equipment      map[string]bool      `json:"equipment,omitempty"`
	EquipmentOther string               `json:"equipment_other,omitempty"`
}

package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. A discharged patient is deactivated,
// never deleted, so historical snapshots keep a valid owner.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	MRN           string     `db:"mrn" json:"mrn"`
	Name          string     `db:"name" json:"name"`
	Building      string     `db:"building" json:"building"`
	Room          string     `db:"room" json:"room"`
	AdmissionDate time.Time  `db:"admission_date" json:"admission_date"`
	OperationDate *time.Time `db:"operation_date" json:"operation_date,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// daysBetween counts whole calendar days from a to b in b's location,
// ignoring clock time. Same day yields 0.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, b.Location())
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, b.Location())
	return int(b.Sub(a).Hours() / 24)
}

// PostOpDay returns the calendar day count since the operation (day 0 is the
// operation day itself), or -1 when no operation is recorded or it lies in
// the future.
func (p *Patient) PostOpDay(now time.Time) int {
	if p.OperationDate == nil {
		return -1
	}
	d := daysBetween(*p.OperationDate, now)
	if d < 0 {
		return -1
	}
	return d
}

// LengthOfStay returns the calendar day count since admission.
func (p *Patient) LengthOfStay(now time.Time) int {
	d := daysBetween(p.AdmissionDate, now)
	if d < 0 {
		return 0
	}
	return d
}

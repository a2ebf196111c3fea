package payment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalefaith2021/jjschool/core"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

var AllStatuses = []string{StatusPending, StatusConfirmed, StatusRejected}

type Payment struct {
	ID         string     `json:"id" bson:"_id" db:"id"`
	StudentID  string     `json:"studentId" bson:"student_id" db:"student_id"`
	Amount     float64    `json:"amount" bson:"amount" db:"amount"`
	Type       string     `json:"type" bson:"type" db:"type"`
	Method     string     `json:"method" bson:"method" db:"method"`
	Reference  string     `json:"reference" bson:"reference" db:"reference"`
	Status     string     `json:"status" bson:"status" db:"status"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty" bson:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt  time.Time  `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

func (p Payment) IsDecided() bool {
	return p.Status != StatusPending
}

// NewPayment is a payment declared by a student (or by an admin on their behalf).
// Any status sent along is ignored: new payments are always pending.
type NewPayment struct {
	StudentID string  `json:"studentId" validate:"notblank"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Type      string  `json:"type" validate:"notblank,max=100"`
	Method    string  `json:"method" validate:"notblank,max=100"`
	Reference string  `json:"reference" validate:"notblank,max=200"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Type = core.CleanString(np.Type)
	np.Method = core.CleanString(np.Method)
	np.Reference = core.CleanString(np.Reference)
	return validate.Struct(np)
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required,oneof=confirmed rejected"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

type QueryFilter struct {
	StudentID string `query:"studentId"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

func (qf QueryFilter) Matches(p Payment) bool {
	return (qf.StudentID == "" || p.StudentID == qf.StudentID) &&
		(qf.Status == "" || p.Status == qf.Status)
}

type StatusTotal struct {
	Status string  `json:"status" bson:"_id" db:"status"`
	Count  int     `json:"count" bson:"count" db:"count"`
	Amount float64 `json:"amount" bson:"amount" db:"amount"`
}

type Totals struct {
	Count    int           `json:"count"`
	Amount   float64       `json:"amount"`
	ByStatus []StatusTotal `json:"byStatus"`
}

// Get returns the total of status.
func (t Totals) Get(status string) StatusTotal {
	for _, st := range t.ByStatus {
		if st.Status == status {
			return st
		}
	}
	return StatusTotal{Status: status}
}

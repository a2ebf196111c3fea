package fee

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalefaith2021/jjschool/core"
)

// Statuses
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
	StatusPartial = "partial"
)

var AllStatuses = []string{StatusPending, StatusPaid, StatusOverdue, StatusPartial}

type Fee struct {
	ID               string     `json:"id" bson:"_id" db:"id"`
	StudentID        string     `json:"studentId" bson:"student_id" db:"student_id"`
	AcademicYear     string     `json:"academicYear" bson:"academic_year" db:"academic_year"`
	Form             string     `json:"form" bson:"form" db:"form"`
	FeeType          string     `json:"feeType" bson:"fee_type" db:"fee_type"`
	Amount           float64    `json:"amount" bson:"amount" db:"amount"`
	DueDate          time.Time  `json:"dueDate" bson:"due_date" db:"due_date"`
	Status           string     `json:"status" bson:"status" db:"status"`
	PaidAmount       float64    `json:"paidAmount" bson:"paid_amount" db:"paid_amount"`
	PaidDate         *time.Time `json:"paidDate,omitempty" bson:"paid_date,omitempty" db:"paid_date"`
	PaymentMethod    string     `json:"paymentMethod,omitempty" bson:"payment_method" db:"payment_method"`
	PaymentReference string     `json:"paymentReference,omitempty" bson:"payment_reference" db:"payment_reference"`
	Notes            string     `json:"notes,omitempty" bson:"notes" db:"notes"`
	Version          int        `json:"-" bson:"version" db:"version"`
	CreatedAt        time.Time  `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

func (f Fee) Remaining() float64 {
	return f.Amount - f.PaidAmount
}

// applyPayment adds amount to the paid total and recomputes the status at now.
func (f *Fee) applyPayment(amount float64, now time.Time) {
	f.PaidAmount += amount
	f.PaidDate = &now
	switch {
	case f.Remaining() <= 0:
		f.Status = StatusPaid
	case now.After(f.DueDate):
		f.Status = StatusOverdue
	default:
		f.Status = StatusPartial
	}
}

type NewFee struct {
	StudentID    string  `json:"studentId" validate:"notblank"`
	AcademicYear string  `json:"academicYear" validate:"notblank,max=20"`
	Form         string  `json:"form" validate:"required,oneof=form1 form2 form3 form4"`
	FeeType      string  `json:"feeType" validate:"required,oneof=tuition boarding transport uniform books other"`
	Amount       float64 `json:"amount" validate:"gt=0"`
	DueDate      string  `json:"dueDate" validate:"required,isodate"`
	Notes        string  `json:"notes" validate:"max=1000"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.AcademicYear = core.CleanString(nf.AcademicYear)
	nf.Form = core.CleanString(nf.Form, true /* lower */)
	nf.FeeType = core.CleanString(nf.FeeType, true /* lower */)
	nf.DueDate = core.CleanString(nf.DueDate)
	nf.Notes = core.CleanString(nf.Notes)
	return validate.Struct(nf)
}

type RecordPayment struct {
	PaidAmount       float64 `json:"paidAmount" validate:"gt=0"`
	PaymentMethod    string  `json:"paymentMethod" validate:"max=100"`
	PaymentReference string  `json:"paymentReference" validate:"max=200"`
	Notes            string  `json:"notes" validate:"max=1000"`
}

func (rp *RecordPayment) Validate(validate *validator.Validate) error {
	rp.PaymentMethod = core.CleanString(rp.PaymentMethod)
	rp.PaymentReference = core.CleanString(rp.PaymentReference)
	rp.Notes = core.CleanString(rp.Notes)
	return validate.Struct(rp)
}

type QueryFilter struct {
	StudentID string `query:"studentId"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

func (qf QueryFilter) Matches(f Fee) bool {
	return (qf.StudentID == "" || f.StudentID == qf.StudentID) &&
		(qf.Status == "" || f.Status == qf.Status)
}

type StatusTotal struct {
	Status      string  `json:"status" bson:"_id" db:"status"`
	Count       int     `json:"count" bson:"count" db:"count"`
	TotalAmount float64 `json:"totalAmount" bson:"total_amount" db:"total_amount"`
	PaidAmount  float64 `json:"paidAmount" bson:"paid_amount" db:"paid_amount"`
}

type Stats struct {
	Total       int           `json:"total"`
	TotalAmount float64       `json:"totalAmount"`
	ByStatus    []StatusTotal `json:"byStatus"`
}

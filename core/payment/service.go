package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("payment not found")
	ErrAlreadyDecided = core.NewConflictError("payment has already been reviewed")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		// QueryPayments returns matching payments, newest first.
		QueryPayments(ctx context.Context, filter QueryFilter) ([]Payment, error)
		// UpdatePaymentIf replaces the payment only if its stored status is still expectedStatus.
		// Returns ErrNotFound otherwise.
		UpdatePaymentIf(ctx context.Context, p Payment, expectedStatus string) (Payment, error)
		// TotalsByStatus aggregates the count and amount of payments per status.
		// An empty studentID aggregates every payment.
		TotalsByStatus(ctx context.Context, studentID string) ([]StatusTotal, error)
	}

	// Students looks up the student a payment belongs to.
	Students interface {
		GetStudent(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		students Students
		mailSvc  core.EmailService
	}
)

func NewService(repo Repository, students Students, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, students: students, mailSvc: mailSvc}
}

// Submit records a pending payment for an existing, active student.
func (svc *Service) Submit(ctx context.Context, np NewPayment) (Payment, error) {
	student, err := svc.students.GetStudent(ctx, np.StudentID)
	if err != nil {
		return Payment{}, err
	}
	if !student.IsActive {
		return Payment{}, user.ErrStudentNotFound
	}

	now := time.Now().UTC()
	p := Payment{
		StudentID: np.StudentID,
		Amount:    np.Amount,
		Type:      np.Type,
		Method:    np.Method,
		Reference: np.Reference,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p, err = svc.repo.CreatePayment(ctx, p)
	if err != nil {
		return Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

// UpdateStatus confirms or rejects a pending payment and notifies the student.
func (svc *Service) UpdateStatus(ctx context.Context, id string, us UpdateStatus) (Payment, error) {
	p, err := svc.repo.GetPayment(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.IsDecided() {
		return Payment{}, ErrAlreadyDecided
	}

	now := time.Now().UTC()
	p.Status = us.Status
	p.ReviewedAt = &now
	p.UpdatedAt = now
	if p, err = svc.repo.UpdatePaymentIf(ctx, p, StatusPending); err != nil {
		if errors.Cause(err) == ErrNotFound {
			// reviewed concurrently
			return Payment{}, ErrAlreadyDecided
		}
		return Payment{}, errors.Wrap(err, "updating payment")
	}

	if usr, err := svc.students.GetStudent(ctx, p.StudentID); err == nil {
		svc.mailSvc.SendMessages(core.NewEmailMessage(
			mail.Address{Name: usr.FullName, Address: usr.Email},
			fmt.Sprintf("Payment %s - %s", statusLabel(p.Status), p.Reference),
			"payment_status",
			statusData{FullName: usr.FullName, Amount: p.Amount, Type: p.Type, Reference: p.Reference, Status: p.Status},
		))
	}
	return p, nil
}

// Totals returns per-status counts and amounts, for one student if studentID is set.
func (svc *Service) Totals(ctx context.Context, studentID string) (Totals, error) {
	rows, err := svc.repo.TotalsByStatus(ctx, studentID)
	if err != nil {
		return Totals{}, errors.Wrap(err, "aggregating payments")
	}

	byStatus := make(map[string]StatusTotal, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	totals := Totals{ByStatus: make([]StatusTotal, 0, len(AllStatuses))}
	for _, status := range AllStatuses {
		st := byStatus[status]
		st.Status = status
		totals.ByStatus = append(totals.ByStatus, st)
		totals.Count += st.Count
		totals.Amount += st.Amount
	}
	return totals, nil
}

func statusLabel(status string) string {
	switch status {
	case StatusConfirmed:
		return "Confirmed"
	case StatusRejected:
		return "Rejected"
	}
	return "Pending"
}

type statusData struct {
	FullName  string
	Amount    float64
	Type      string
	Reference string
	Status    string
}

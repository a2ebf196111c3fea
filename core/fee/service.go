package fee

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("fee not found")
	ErrAlreadyPaid = core.NewConflictError("fee is already fully paid")
	ErrModified    = core.NewConflictError("fee was modified by another request, please retry")
)

type (
	Repository interface {
		CreateFee(ctx context.Context, f Fee) (Fee, error)
		GetFee(ctx context.Context, id string) (Fee, error)
		// QueryFees returns matching fees, latest due date first.
		QueryFees(ctx context.Context, filter QueryFilter) ([]Fee, error)
		// UpdateFeeIf replaces the fee only if its stored version is still expectedVersion,
		// and bumps the version. Returns ErrNotFound otherwise.
		UpdateFeeIf(ctx context.Context, f Fee, expectedVersion int) (Fee, error)
		TotalsByStatus(ctx context.Context) ([]StatusTotal, error)
	}

	Students interface {
		GetStudent(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		students Students
	}
)

func NewService(repo Repository, students Students) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) Create(ctx context.Context, nf NewFee) (Fee, error) {
	if _, err := svc.students.GetStudent(ctx, nf.StudentID); err != nil {
		return Fee{}, err
	}
	due, _ := core.ParseDate(nf.DueDate) // validated

	now := time.Now().UTC()
	f := Fee{
		StudentID:    nf.StudentID,
		AcademicYear: nf.AcademicYear,
		Form:         nf.Form,
		FeeType:      nf.FeeType,
		Amount:       nf.Amount,
		DueDate:      due,
		Status:       StatusPending,
		Notes:        nf.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f, err := svc.repo.CreateFee(ctx, f)
	if err != nil {
		return Fee{}, errors.Wrap(err, "inserting fee")
	}
	return f, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Fee, error) {
	return svc.repo.QueryFees(ctx, filter)
}

// RecordPayment adds a payment to the fee and recomputes its status.
func (svc *Service) RecordPayment(ctx context.Context, id string, rp RecordPayment) (Fee, error) {
	f, err := svc.repo.GetFee(ctx, id)
	if err != nil {
		return Fee{}, err
	}
	if f.Status == StatusPaid {
		return Fee{}, ErrAlreadyPaid
	}

	version := f.Version
	now := time.Now().UTC()
	f.applyPayment(rp.PaidAmount, now)
	f.PaymentMethod = rp.PaymentMethod
	f.PaymentReference = rp.PaymentReference
	if rp.Notes != "" {
		f.Notes = rp.Notes
	}
	f.UpdatedAt = now

	if f, err = svc.repo.UpdateFeeIf(ctx, f, version); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Fee{}, ErrModified
		}
		return Fee{}, errors.Wrap(err, "updating fee")
	}
	return f, nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	rows, err := svc.repo.TotalsByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "aggregating fees")
	}

	byStatus := make(map[string]StatusTotal, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	stats := Stats{ByStatus: make([]StatusTotal, 0, len(AllStatuses))}
	for _, status := range AllStatuses {
		st := byStatus[status]
		st.Status = status
		stats.ByStatus = append(stats.ByStatus, st)
		stats.Total += st.Count
		stats.TotalAmount += st.TotalAmount
	}
	return stats, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/fee"
)

var feeColumns = []string{
	"id", "student_id", "academic_year", "form", "fee_type", "amount", "due_date", "status", "paid_amount",
	"paid_date", "payment_method", "payment_reference", "notes", "version", "created_at", "updated_at",
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	f.ID = newID()
	query, args, err := builder.Insert("fees").
		Columns(feeColumns...).
		Values(f.ID, f.StudentID, f.AcademicYear, f.Form, f.FeeType, f.Amount, f.DueDate, f.Status, f.PaidAmount,
			f.PaidDate, f.PaymentMethod, f.PaymentReference, f.Notes, f.Version, f.CreatedAt, f.UpdatedAt).
		ToSql()
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return fee.Fee{}, err
	}
	return f, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string) (fee.Fee, error) {
	query, args, err := builder.Select(feeColumns...).From("fees").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "building query")
	}
	var f fee.Fee
	if err = repo.db.GetContext(ctx, &f, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fee.Fee{}, fee.ErrNotFound
		}
		return fee.Fee{}, err
	}
	return f, nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	qb := builder.Select(feeColumns...).From("fees")
	if filter.StudentID != "" {
		qb = qb.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := qb.OrderBy("due_date DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	fees := make([]fee.Fee, 0)
	if err = repo.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, err
	}
	return fees, nil
}

func (repo *feeRepository) UpdateFeeIf(ctx context.Context, f fee.Fee, expectedVersion int) (fee.Fee, error) {
	f.Version = expectedVersion + 1
	query, args, err := builder.Update("fees").
		SetMap(map[string]interface{}{
			"status":            f.Status,
			"paid_amount":       f.PaidAmount,
			"paid_date":         f.PaidDate,
			"payment_method":    f.PaymentMethod,
			"payment_reference": f.PaymentReference,
			"notes":             f.Notes,
			"version":           f.Version,
			"updated_at":        f.UpdatedAt,
		}).
		Where(sq.Eq{"id": f.ID, "version": expectedVersion}).
		ToSql()
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fee.Fee{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fee.Fee{}, fee.ErrNotFound
	}
	return f, nil
}

func (repo *feeRepository) TotalsByStatus(ctx context.Context) ([]fee.StatusTotal, error) {
	query, args, err := builder.Select(
		"status",
		"COUNT(*) AS count",
		"COALESCE(SUM(amount), 0) AS total_amount",
		"COALESCE(SUM(paid_amount), 0) AS paid_amount",
	).From("fees").GroupBy("status").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	totals := make([]fee.StatusTotal, 0)
	if err = repo.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, err
	}
	return totals, nil
}

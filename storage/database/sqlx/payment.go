package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/payment"
)

var paymentColumns = []string{
	"id", "student_id", "amount", "type", "method", "reference", "status", "reviewed_at", "created_at", "updated_at",
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = newID()
	query, args, err := builder.Insert("payments").
		Columns(paymentColumns...).
		Values(p.ID, p.StudentID, p.Amount, p.Type, p.Method, p.Reference, p.Status, p.ReviewedAt, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	query, args, err := builder.Select(paymentColumns...).From("payments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "building query")
	}
	var p payment.Payment
	if err = repo.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	qb := builder.Select(paymentColumns...).From("payments")
	if filter.StudentID != "" {
		qb = qb.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := qb.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	payments := make([]payment.Payment, 0)
	if err = repo.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, err
	}
	return payments, nil
}

func (repo *paymentRepository) UpdatePaymentIf(ctx context.Context, p payment.Payment, expectedStatus string) (payment.Payment, error) {
	query, args, err := builder.Update("payments").
		SetMap(map[string]interface{}{
			"status":      p.Status,
			"reviewed_at": p.ReviewedAt,
			"updated_at":  p.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID, "status": expectedStatus}).
		ToSql()
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return payment.Payment{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (repo *paymentRepository) TotalsByStatus(ctx context.Context, studentID string) ([]payment.StatusTotal, error) {
	qb := builder.Select("status", "COUNT(*) AS count", "COALESCE(SUM(amount), 0) AS amount").
		From("payments").
		GroupBy("status")
	if studentID != "" {
		qb = qb.Where(sq.Eq{"student_id": studentID})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	totals := make([]payment.StatusTotal, 0)
	if err = repo.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, err
	}
	return totals, nil
}

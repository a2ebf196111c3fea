package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/signup"
)

var signupColumns = []string{
	"id", "application_id", "email", "full_name", "desired_username", "otp", "otp_expires_at",
	"status", "reason", "user_id", "username", "created_at", "updated_at",
}

type signupRepository struct {
	db *sqlx.DB
}

var _ signup.Repository = (*signupRepository)(nil) // interface compliance check

func NewSignupRepository(db *sqlx.DB) signup.Repository {
	return &signupRepository{db: db}
}

func (repo *signupRepository) CreateSignup(ctx context.Context, ps signup.PendingSignup) (signup.PendingSignup, error) {
	ps.ID = newID()
	query, args, err := builder.Insert("pending_signups").
		Columns(signupColumns...).
		Values(ps.ID, ps.ApplicationID, ps.Email, ps.FullName, ps.DesiredUsername, ps.OTP, ps.OTPExpiresAt,
			ps.Status, ps.Reason, ps.UserID, ps.Username, ps.CreatedAt, ps.UpdatedAt).
		ToSql()
	if err != nil {
		return signup.PendingSignup{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "pending_signups_application_id_key" {
			return signup.PendingSignup{}, signup.ErrSignupExists
		}
		return signup.PendingSignup{}, err
	}
	return ps, nil
}

func (repo *signupRepository) GetSignup(ctx context.Context, filter signup.GetFilter) (signup.PendingSignup, error) {
	var where sq.Eq
	switch {
	case filter.ID != "":
		where = sq.Eq{"id": filter.ID}
	case filter.ApplicationID != "":
		where = sq.Eq{"application_id": filter.ApplicationID}
	default:
		return signup.PendingSignup{}, signup.ErrNotFound
	}
	query, args, err := builder.Select(signupColumns...).From("pending_signups").Where(where).ToSql()
	if err != nil {
		return signup.PendingSignup{}, errors.Wrap(err, "building query")
	}

	var ps signup.PendingSignup
	if err = repo.db.GetContext(ctx, &ps, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return signup.PendingSignup{}, signup.ErrNotFound
		}
		return signup.PendingSignup{}, err
	}
	return ps, nil
}

func (repo *signupRepository) QuerySignups(ctx context.Context, filter signup.QueryFilter) ([]signup.PendingSignup, error) {
	qb := builder.Select(signupColumns...).From("pending_signups")
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := qb.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	signups := make([]signup.PendingSignup, 0)
	if err = repo.db.SelectContext(ctx, &signups, query, args...); err != nil {
		return nil, err
	}
	return signups, nil
}

func (repo *signupRepository) UpdateSignupIf(ctx context.Context, ps signup.PendingSignup, expectedStatus string) (signup.PendingSignup, error) {
	query, args, err := builder.Update("pending_signups").
		SetMap(map[string]interface{}{
			"otp":            ps.OTP,
			"otp_expires_at": ps.OTPExpiresAt,
			"status":         ps.Status,
			"reason":         ps.Reason,
			"user_id":        ps.UserID,
			"username":       ps.Username,
			"updated_at":     ps.UpdatedAt,
		}).
		Where(sq.Eq{"id": ps.ID, "status": expectedStatus}).
		ToSql()
	if err != nil {
		return signup.PendingSignup{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return signup.PendingSignup{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return signup.PendingSignup{}, signup.ErrNotFound
	}
	return ps, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/user"
)

var userColumns = []string{
	"id", "username", "email", "full_name", "role", "is_active", "requires_password_reset",
	"password_hash", "last_login", "created_at", "updated_at",
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func userErr(err error) error {
	if constraint, ok := violatedConstraint(err); ok {
		if constraint == "users_email_key" {
			return user.ErrEmailExists
		}
		return user.ErrUsernameExists
	}
	return err
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	or := sq.Or{}
	if username != "" {
		or = append(or, sq.Eq{"username": username})
	}
	if email != "" {
		or = append(or, sq.Eq{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	qb := builder.Select("username", "email").From("users").Where(or).Limit(1)
	if len(excludedIDs) > 0 {
		qb = qb.Where(sq.NotEq{"id": excludedIDs})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var usr user.User
	err = repo.db.GetContext(ctx, &usr, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking uniqueness")
	case username != "" && usr.Username == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	query, args, err := builder.Insert("users").
		Columns(userColumns...).
		Values(usr.ID, usr.Username, usr.Email, usr.FullName, usr.Role, usr.IsActive, usr.RequiresPasswordReset,
			usr.PasswordHash, usr.LastLogin, usr.CreatedAt, usr.UpdatedAt).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, userErr(err)
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where sq.Eq
	switch {
	case filter.ID != "":
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	default:
		return user.User{}, user.ErrNotFound
	}
	query, args, err := builder.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var usr user.User
	if err = repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return usr, nil
}

func userWhere(qb sq.SelectBuilder, filter user.QueryFilter) sq.SelectBuilder {
	if filter.Role != "" {
		qb = qb.Where(sq.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}
	if filter.Search != "" {
		p := containsPattern(filter.Search)
		qb = qb.Where(sq.Or{sq.ILike{"full_name": p}, sq.ILike{"username": p}, sq.ILike{"email": p}})
	}
	return qb
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query, args, err := userWhere(builder.Select(userColumns...).From("users"), filter).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	users := make([]user.User, 0)
	if err = repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo *userRepository) CountUsers(ctx context.Context, filter user.QueryFilter) (int, error) {
	query, args, err := userWhere(builder.Select("COUNT(*)").From("users"), filter).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var n int
	err = repo.db.GetContext(ctx, &n, query, args...)
	return n, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := builder.Update("users").
		SetMap(map[string]interface{}{
			"username":                usr.Username,
			"email":                   usr.Email,
			"full_name":               usr.FullName,
			"role":                    usr.Role,
			"is_active":               usr.IsActive,
			"requires_password_reset": usr.RequiresPasswordReset,
			"password_hash":           usr.PasswordHash,
			"last_login":              usr.LastLogin,
			"updated_at":              usr.UpdatedAt,
		}).
		Where(sq.Eq{"id": usr.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, userErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	query, args, err := builder.Update("users").
		Set("last_login", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

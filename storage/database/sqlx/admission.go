package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/admission"
)

var admissionColumns = []string{
	"id", "application_number", "personal_info", "contact_info", "academic_info", "parent_info",
	"medical_info", "payment_info", "email", "status", "date_submitted", "admin_notes", "reviewed_by",
	"reviewed_at", "created_at", "updated_at",
}

// jsonb stores a section of an admission in a JSONB column.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}

func (j *jsonb[T]) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &j.V)
	case string:
		return json.Unmarshal([]byte(v), &j.V)
	case nil:
		return nil
	}
	return errors.Errorf("jsonb: cannot scan %T", src)
}

type admissionRow struct {
	ID                string                        `db:"id"`
	ApplicationNumber string                        `db:"application_number"`
	PersonalInfo      jsonb[admission.PersonalInfo] `db:"personal_info"`
	ContactInfo       jsonb[admission.ContactInfo]  `db:"contact_info"`
	AcademicInfo      jsonb[admission.AcademicInfo] `db:"academic_info"`
	ParentInfo        jsonb[admission.ParentInfo]   `db:"parent_info"`
	MedicalInfo       jsonb[admission.MedicalInfo]  `db:"medical_info"`
	PaymentInfo       jsonb[admission.PaymentInfo]  `db:"payment_info"`
	Email             string                        `db:"email"`
	Status            string                        `db:"status"`
	DateSubmitted     time.Time                     `db:"date_submitted"`
	AdminNotes        string                        `db:"admin_notes"`
	ReviewedBy        string                        `db:"reviewed_by"`
	ReviewedAt        *time.Time                    `db:"reviewed_at"`
	CreatedAt         time.Time                     `db:"created_at"`
	UpdatedAt         time.Time                     `db:"updated_at"`
}

func toAdmissionRow(adm admission.Admission) admissionRow {
	return admissionRow{
		ID:                adm.ID,
		ApplicationNumber: adm.ApplicationNumber,
		PersonalInfo:      jsonb[admission.PersonalInfo]{V: adm.PersonalInfo},
		ContactInfo:       jsonb[admission.ContactInfo]{V: adm.ContactInfo},
		AcademicInfo:      jsonb[admission.AcademicInfo]{V: adm.AcademicInfo},
		ParentInfo:        jsonb[admission.ParentInfo]{V: adm.ParentInfo},
		MedicalInfo:       jsonb[admission.MedicalInfo]{V: adm.MedicalInfo},
		PaymentInfo:       jsonb[admission.PaymentInfo]{V: adm.PaymentInfo},
		Email:             adm.ContactInfo.Email,
		Status:            adm.Status,
		DateSubmitted:     adm.DateSubmitted,
		AdminNotes:        adm.AdminNotes,
		ReviewedBy:        adm.ReviewedBy,
		ReviewedAt:        adm.ReviewedAt,
		CreatedAt:         adm.CreatedAt,
		UpdatedAt:         adm.UpdatedAt,
	}
}

func (r admissionRow) toAdmission() admission.Admission {
	return admission.Admission{
		ID:                r.ID,
		ApplicationNumber: r.ApplicationNumber,
		PersonalInfo:      r.PersonalInfo.V,
		ContactInfo:       r.ContactInfo.V,
		AcademicInfo:      r.AcademicInfo.V,
		ParentInfo:        r.ParentInfo.V,
		MedicalInfo:       r.MedicalInfo.V,
		PaymentInfo:       r.PaymentInfo.V,
		Status:            r.Status,
		DateSubmitted:     r.DateSubmitted.UTC(),
		AdminNotes:        r.AdminNotes,
		ReviewedBy:        r.ReviewedBy,
		ReviewedAt:        r.ReviewedAt,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type admissionRepository struct {
	db *sqlx.DB
}

var _ admission.Repository = (*admissionRepository)(nil) // interface compliance check

func NewAdmissionRepository(db *sqlx.DB) admission.Repository {
	return &admissionRepository{db: db}
}

func (repo *admissionRepository) NextSequence(ctx context.Context, key string) (int64, error) {
	query, args, err := builder.Insert("counters").
		Columns("key", "seq").
		Values(key, 1).
		Suffix("ON CONFLICT (key) DO UPDATE SET seq = counters.seq + 1 RETURNING seq").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var seq int64
	err = repo.db.GetContext(ctx, &seq, query, args...)
	return seq, err
}

func (repo *admissionRepository) CreateAdmission(ctx context.Context, adm admission.Admission) (admission.Admission, error) {
	adm.ID = newID()
	r := toAdmissionRow(adm)
	query, args, err := builder.Insert("admissions").
		Columns(admissionColumns...).
		Values(r.ID, r.ApplicationNumber, r.PersonalInfo, r.ContactInfo, r.AcademicInfo, r.ParentInfo,
			r.MedicalInfo, r.PaymentInfo, r.Email, r.Status, r.DateSubmitted, r.AdminNotes, r.ReviewedBy,
			r.ReviewedAt, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return admission.Admission{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "admissions_application_number_key" {
			return admission.Admission{}, admission.ErrDuplicateNumber
		}
		return admission.Admission{}, err
	}
	return adm, nil
}

func (repo *admissionRepository) GetAdmission(ctx context.Context, id string) (admission.Admission, error) {
	query, args, err := builder.Select(admissionColumns...).From("admissions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return admission.Admission{}, errors.Wrap(err, "building query")
	}
	var r admissionRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admission.Admission{}, admission.ErrNotFound
		}
		return admission.Admission{}, err
	}
	return r.toAdmission(), nil
}

func (repo *admissionRepository) QueryAdmissions(ctx context.Context, filter admission.QueryFilter) ([]admission.Admission, error) {
	qb := builder.Select(admissionColumns...).From("admissions")
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Email != "" {
		qb = qb.Where(sq.Eq{"email": filter.Email})
	}
	if filter.Search != "" {
		p := containsPattern(filter.Search)
		qb = qb.Where(sq.Or{
			sq.ILike{"personal_info->>'firstName'": p},
			sq.ILike{"personal_info->>'lastName'": p},
			sq.ILike{"application_number": p},
			sq.ILike{"email": p},
		})
	}
	query, args, err := qb.OrderBy("date_submitted DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	rows := make([]admissionRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	adms := make([]admission.Admission, 0, len(rows))
	for _, r := range rows {
		adms = append(adms, r.toAdmission())
	}
	return adms, nil
}

func (repo *admissionRepository) UpdateAdmissionIf(ctx context.Context, adm admission.Admission, expectedStatus string) (admission.Admission, error) {
	r := toAdmissionRow(adm)
	query, args, err := builder.Update("admissions").
		SetMap(map[string]interface{}{
			"status":      r.Status,
			"admin_notes": r.AdminNotes,
			"reviewed_by": r.ReviewedBy,
			"reviewed_at": r.ReviewedAt,
			"updated_at":  r.UpdatedAt,
		}).
		Where(sq.Eq{"id": r.ID, "status": expectedStatus}).
		ToSql()
	if err != nil {
		return admission.Admission{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return admission.Admission{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err = repo.GetAdmission(ctx, adm.ID); err != nil {
			return admission.Admission{}, err
		}
		return admission.Admission{}, admission.ErrStatusConflict
	}
	return adm, nil
}

func (repo *admissionRepository) CountByStatus(ctx context.Context) ([]admission.StatusCount, error) {
	query, args, err := builder.Select("status", "COUNT(*) AS count").From("admissions").GroupBy("status").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	counts := make([]admission.StatusCount, 0)
	if err = repo.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, err
	}
	return counts, nil
}

package user

import (
	"context"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mwalefaith2021/jjschool/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrStudentNotFound    = core.NewNotFoundError("student not found")
	ErrInvalidCredentials = core.NewAuthError("invalid username or password")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrSamePassword       = errors.New("new password must be different from the current one")
	ErrUsernameExhausted  = errors.New("could not find an available username")

	maxUsernameSuffix = 100
	usernameCleaner   = regexp.MustCompile(`[^a-z0-9._\-]+`)

	dummyHash     []byte
	dummyHashOnce sync.Once
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if another user holds either value.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		// CreateUser returns ErrUsernameExists or ErrEmailExists when a unique constraint is hit.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers returns matching users, newest first.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		CountUsers(ctx context.Context, filter QueryFilter) (int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// SetLastLogin only writes the last login of user id; returns ErrNotFound if there is none.
		SetLastLogin(ctx context.Context, id string, at time.Time) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

// DesiredUsername derives `first.last` from an applicant's names, lower-cased, without inner whitespace.
func DesiredUsername(firstName, lastName string) string {
	first := strings.Join(strings.Fields(strings.ToLower(firstName)), "")
	last := strings.Join(strings.Fields(strings.ToLower(lastName)), "")
	return sanitizeUsername(first + "." + last)
}

func sanitizeUsername(s string) string {
	s = usernameCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	s = strings.Trim(s, ".")
	if s == "" {
		s = RoleStudent
	}
	return s
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		return uniquenessErr(err)
	}
	return nil
}

// uniquenessErr maps repository uniqueness errors to a ValidationError.
func uniquenessErr(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err
	}
	cause := errors.Cause(err)
	return core.NewValidationError(cause, core.FieldError{Field: field, Error: cause.Error()})
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Username:              nu.Username,
		Email:                 nu.Email,
		FullName:              nu.FullName,
		Role:                  nu.Role,
		IsActive:              true,
		RequiresPasswordReset: nu.RequiresPasswordReset,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := validatePassword("password", nu.Password, usr); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessErr(err)
	}
	return usr, nil
}

// CreateStudent creates an active student that must reset their password on first login.
// The desired username gets a numeric suffix (ama.banda, ama.banda1, ...) until it is free.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (User, error) {
	email := core.CleanString(ns.Email, true /* lower */)
	if err := svc.checkUniqueness(ctx, "", email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Email:                 email,
		FullName:              core.CleanString(ns.FullName),
		Role:                  RoleStudent,
		IsActive:              true,
		RequiresPasswordReset: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	base := sanitizeUsername(ns.Username)
	for i := 0; i <= maxUsernameSuffix; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		if _, err := svc.repo.GetUser(ctx, GetFilter{Username: candidate}); err == nil {
			continue
		} else if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "checking username")
		}

		usr.Username = candidate
		created, err := svc.repo.CreateUser(ctx, usr)
		switch errors.Cause(err) {
		case nil:
			return created, nil
		case ErrUsernameExists: // taken concurrently
			continue
		default:
			return User{}, uniquenessErr(err)
		}
	}
	return User{}, ErrUsernameExhausted
}

func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// Authenticate checks the credentials of an active user and stamps their last login.
// Unknown users, inactive users and wrong passwords all yield ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "finding user")
		}
		// keep the response time close to a real check
		_ = bcrypt.CompareHashAndPassword(getDummyHash(), []byte(pwd))
		return User{}, ErrInvalidCredentials
	}
	if err = usr.CheckPassword(pwd); err != nil || !usr.IsActive {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	usr.LastLogin = &now
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

// GetStudent returns the user with id if they are a student, ErrStudentNotFound otherwise.
func (svc *Service) GetStudent(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrStudentNotFound
		}
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrStudentNotFound
	}
	return usr, nil
}

// QueryStudents lists students, newest first. Only active students are listed unless filter.IsActive is set.
func (svc *Service) QueryStudents(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Role = RoleStudent
	if filter.IsActive == nil {
		active := true
		filter.IsActive = &active
	}
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (User, error) {
	usr, err := svc.GetStudent(ctx, id)
	if err != nil {
		return User{}, err
	}
	if us.Email != "" && us.Email != usr.Email {
		if err = svc.checkUniqueness(ctx, "", us.Email, usr.ID); err != nil {
			return User{}, err
		}
		usr.Email = us.Email
	}
	if us.FullName != "" {
		usr.FullName = us.FullName
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessErr(err)
	}
	return usr, nil
}

// Deactivate soft-deletes a student: users are never removed.
func (svc *Service) Deactivate(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetStudent(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = false
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword sets a new password and clears RequiresPasswordReset.
// The old password is only required when the user is not in the forced-reset flow.
func (svc *Service) ChangePassword(ctx context.Context, id string, cp ChangePassword) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if !usr.RequiresPasswordReset {
		if cp.OldPassword == "" {
			return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "oldPassword", Error: "this field is required"})
		}
		if err = usr.CheckPassword(cp.OldPassword); err != nil {
			return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "oldPassword", Error: ErrWrongPassword.Error()})
		}
	}
	if usr.CheckPassword(cp.NewPassword) == nil {
		return User{}, core.NewValidationError(ErrSamePassword, core.FieldError{Field: "newPassword", Error: ErrSamePassword.Error()})
	}
	if err = validatePassword("newPassword", cp.NewPassword, usr); err != nil {
		return User{}, err
	}

	if err = usr.SetPassword(cp.NewPassword); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.RequiresPasswordReset = false
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

type passwordResetData struct {
	FullName string
	Username string
	OTP      string
}

// ResetPassword replaces the user's password with a one-time password, emails it,
// and forces a password change on next login.
func (svc *Service) ResetPassword(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	otp, err := core.GenerateOTP(svc.conf.Admissions.OTPDigits)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(otp); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.RequiresPasswordReset = true
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}

	svc.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Name: usr.FullName, Address: usr.Email},
		"Your password has been reset",
		"password_reset",
		passwordResetData{FullName: usr.FullName, Username: usr.Username, OTP: otp},
	))
	return usr, nil
}

// EnsureAdmin seeds the configured admin account if it does not exist yet.
// The returned bool reports whether the account was created.
func (svc *Service) EnsureAdmin(ctx context.Context) (User, bool, error) {
	adm := svc.conf.Admin
	uname := core.CleanString(adm.Username, true /* lower */)
	if usr, err := svc.repo.GetUser(ctx, GetFilter{Username: uname}); err == nil {
		return usr, false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, false, errors.Wrap(err, "finding admin")
	}

	now := time.Now().UTC()
	usr := User{
		Username:  uname,
		Email:     core.CleanString(adm.Email, true /* lower */),
		FullName:  core.CleanString(adm.FullName),
		Role:      RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(adm.Password); err != nil {
		return User{}, false, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, false, errors.Wrap(err, "creating admin")
	}
	return usr, true, nil
}

// AdminSeeded reports whether at least one active admin exists.
func (svc *Service) AdminSeeded(ctx context.Context) (bool, error) {
	active := true
	count, err := svc.repo.CountUsers(ctx, QueryFilter{Role: RoleAdmin, IsActive: &active})
	if err != nil {
		return false, errors.Wrap(err, "counting admins")
	}
	return count > 0, nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	active := true
	filter := QueryFilter{Role: RoleStudent, IsActive: &active}
	total, err := svc.repo.CountUsers(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting students")
	}

	now := time.Now().UTC()
	filter.CreatedFrom = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	newThisMonth, err := svc.repo.CountUsers(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting new students")
	}
	return Stats{TotalActive: total, NewThisMonth: newThisMonth}, nil
}

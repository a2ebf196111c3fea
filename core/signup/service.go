package signup

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("pending signup not found")
	ErrAlreadyProcessed     = core.NewConflictError("pending signup has already been processed")
	ErrApplicationNotAccept = core.NewConflictError("application must be accepted before creating a signup")
	ErrSignupExists         = core.NewConflictError("a signup already exists for this application")
)

type (
	Repository interface {
		// CreateSignup returns ErrSignupExists when the application already has a signup.
		CreateSignup(ctx context.Context, ps PendingSignup) (PendingSignup, error)
		GetSignup(ctx context.Context, filter GetFilter) (PendingSignup, error)
		// QuerySignups returns matching signups, newest first.
		QuerySignups(ctx context.Context, filter QueryFilter) ([]PendingSignup, error)
		// UpdateSignupIf replaces the signup only if its stored status is still expectedStatus.
		// Returns ErrNotFound otherwise.
		UpdateSignupIf(ctx context.Context, ps PendingSignup, expectedStatus string) (PendingSignup, error)
	}

	// Students creates the student accounts of approved signups.
	Students interface {
		CreateStudent(ctx context.Context, ns user.NewStudent) (user.User, error)
	}

	Service struct {
		repo       Repository
		admissions admission.Repository
		students   Students
		mailSvc    core.EmailService
		conf       *core.Config
	}
)

var _ admission.Provisioner = (*Service)(nil)

func NewService(
	repo Repository,
	admissions admission.Repository,
	students Students,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		admissions: admissions,
		students:   students,
		mailSvc:    mailSvc,
		conf:       conf,
	}
}

func (svc *Service) newOTP(now time.Time) (string, time.Time, error) {
	otp, err := core.GenerateOTP(svc.conf.Admissions.OTPDigits)
	if err != nil {
		return "", time.Time{}, err
	}
	return otp, now.Add(svc.conf.Admissions.OTPTTL), nil
}

// Provision creates the pending signup of an accepted admission and emails the OTP.
// It is a no-op if the admission already has a signup.
func (svc *Service) Provision(ctx context.Context, adm admission.Admission) error {
	_, err := svc.create(ctx, adm)
	if errors.Cause(err) == ErrSignupExists {
		return nil
	}
	return err
}

// Create provisions a signup for an accepted admission that does not have one yet.
func (svc *Service) Create(ctx context.Context, ns NewSignup) (PendingSignup, error) {
	adm, err := svc.admissions.GetAdmission(ctx, ns.ApplicationID)
	if err != nil {
		return PendingSignup{}, err
	}
	if adm.Status != admission.StatusAccepted {
		return PendingSignup{}, ErrApplicationNotAccept
	}
	return svc.create(ctx, adm)
}

func (svc *Service) create(ctx context.Context, adm admission.Admission) (PendingSignup, error) {
	if _, err := svc.repo.GetSignup(ctx, GetFilter{ApplicationID: adm.ID}); err == nil {
		return PendingSignup{}, ErrSignupExists
	} else if errors.Cause(err) != ErrNotFound {
		return PendingSignup{}, errors.Wrap(err, "finding signup")
	}

	now := time.Now().UTC()
	otp, expiresAt, err := svc.newOTP(now)
	if err != nil {
		return PendingSignup{}, err
	}
	ps := PendingSignup{
		ApplicationID:   adm.ID,
		Email:           adm.ContactInfo.Email,
		FullName:        adm.FullName(),
		DesiredUsername: user.DesiredUsername(adm.PersonalInfo.FirstName, adm.PersonalInfo.LastName),
		OTP:             otp,
		OTPExpiresAt:    expiresAt,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ps, err = svc.repo.CreateSignup(ctx, ps); err != nil {
		return PendingSignup{}, err
	}

	svc.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Name: ps.FullName, Address: ps.Email},
		"Application Accepted - Your One-Time Password",
		"signup_otp",
		otpData{
			FullName:          ps.FullName,
			ApplicationNumber: adm.ApplicationNumber,
			Username:          ps.DesiredUsername,
			OTP:               ps.OTP,
			ExpiresAt:         ps.OTPExpiresAt,
		},
	))
	return ps, nil
}

func (svc *Service) Get(ctx context.Context, id string) (PendingSignup, error) {
	return svc.repo.GetSignup(ctx, GetFilter{ID: id})
}

// Query lists signups with filter.Status, pending ones by default.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]PendingSignup, error) {
	switch filter.Status {
	case "":
		filter.Status = StatusPending
	case StatusAll:
		filter.Status = ""
	}
	return svc.repo.QuerySignups(ctx, filter)
}

// claim moves a pending signup to status, atomically.
// A signup that is not pending anymore, or that another request claimed first, yields ErrAlreadyProcessed.
func (svc *Service) claim(ctx context.Context, ps PendingSignup) (PendingSignup, error) {
	claimed, err := svc.repo.UpdateSignupIf(ctx, ps, StatusPending)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return PendingSignup{}, ErrAlreadyProcessed
		}
		return PendingSignup{}, errors.Wrap(err, "updating signup")
	}
	return claimed, nil
}

func (svc *Service) getPending(ctx context.Context, id string) (PendingSignup, error) {
	ps, err := svc.repo.GetSignup(ctx, GetFilter{ID: id})
	if err != nil {
		return PendingSignup{}, err
	}
	if ps.Status != StatusPending {
		return PendingSignup{}, ErrAlreadyProcessed
	}
	return ps, nil
}

// Approve creates the student account of a pending signup.
// The signup is claimed before the user is created so concurrent approvals yield at most one user;
// if the user cannot be created the signup goes back to pending.
func (svc *Service) Approve(ctx context.Context, id string) (PendingSignup, user.User, error) {
	orig, err := svc.getPending(ctx, id)
	if err != nil {
		return PendingSignup{}, user.User{}, err
	}

	now := time.Now().UTC()
	ps := orig
	if ps.OTPExpired(now) {
		if ps.OTP, ps.OTPExpiresAt, err = svc.newOTP(now); err != nil {
			return PendingSignup{}, user.User{}, err
		}
	}
	ps.Status = StatusApproved
	ps.UpdatedAt = now
	if ps, err = svc.claim(ctx, ps); err != nil {
		return PendingSignup{}, user.User{}, err
	}

	usr, err := svc.students.CreateStudent(ctx, user.NewStudent{
		Username: ps.DesiredUsername,
		Email:    ps.Email,
		FullName: ps.FullName,
		Password: ps.OTP,
	})
	if err != nil {
		if _, rErr := svc.repo.UpdateSignupIf(ctx, orig, StatusApproved); rErr != nil {
			return PendingSignup{}, user.User{}, errors.Wrapf(err, "creating student (reverting signup: %v)", rErr)
		}
		return PendingSignup{}, user.User{}, errors.Wrap(err, "creating student")
	}

	approved := ps
	approved.UserID = usr.ID
	approved.Username = usr.Username
	if approved, err = svc.repo.UpdateSignupIf(ctx, approved, StatusApproved); err != nil {
		return PendingSignup{}, user.User{}, errors.Wrap(err, "linking signup to student")
	}

	svc.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Name: usr.FullName, Address: usr.Email},
		"Your Student Account is Ready",
		"account_approved",
		approvedData{FullName: usr.FullName, Username: usr.Username, Password: ps.OTP},
	))
	return approved, usr, nil
}

// Reject closes a pending signup and emails the optional reason to the applicant.
func (svc *Service) Reject(ctx context.Context, id string, rs RejectSignup) (PendingSignup, error) {
	ps, err := svc.getPending(ctx, id)
	if err != nil {
		return PendingSignup{}, err
	}

	ps.Status = StatusRejected
	ps.Reason = rs.Reason
	ps.UpdatedAt = time.Now().UTC()
	if ps, err = svc.claim(ctx, ps); err != nil {
		return PendingSignup{}, err
	}

	svc.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Name: ps.FullName, Address: ps.Email},
		"Account Request Update",
		"signup_rejected",
		rejectedData{FullName: ps.FullName, Reason: ps.Reason},
	))
	return ps, nil
}

type (
	otpData struct {
		FullName          string
		ApplicationNumber string
		Username          string
		OTP               string
		ExpiresAt         time.Time
	}

	approvedData struct {
		FullName string
		Username string
		Password string
	}

	rejectedData struct {
		FullName string
		Reason   string
	}
)

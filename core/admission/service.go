package admission

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("application not found")
	ErrAlreadyDecided   = core.NewConflictError("application has already been decided")
	ErrStatusConflict   = core.NewConflictError("application status was changed by another request")
	ErrDuplicateNumber  = errors.New("application number already exists")
	ErrNumberExhausted  = errors.New("could not assign a unique application number")
	maxNumberingRetries = 5
)

type (
	Repository interface {
		// NextSequence atomically increments the counter `key` and returns its new value.
		NextSequence(ctx context.Context, key string) (int64, error)
		// CreateAdmission returns ErrDuplicateNumber when the application number is taken.
		CreateAdmission(ctx context.Context, adm Admission) (Admission, error)
		GetAdmission(ctx context.Context, id string) (Admission, error)
		// QueryAdmissions returns matching admissions, most recently submitted first.
		QueryAdmissions(ctx context.Context, filter QueryFilter) ([]Admission, error)
		// UpdateAdmissionIf replaces the admission only if its stored status is still expectedStatus.
		// Returns ErrStatusConflict otherwise.
		UpdateAdmissionIf(ctx context.Context, adm Admission, expectedStatus string) (Admission, error)
		CountByStatus(ctx context.Context) ([]StatusCount, error)
	}

	// Provisioner creates the downstream signup of an accepted admission.
	Provisioner interface {
		Provision(ctx context.Context, adm Admission) error
	}

	Service struct {
		repo        Repository
		provisioner Provisioner
		mailSvc     core.EmailService
		conf        *core.Config
	}
)

func NewService(repo Repository, provisioner Provisioner, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		mailSvc:     mailSvc,
		conf:        conf,
	}
}

// FormatNumber renders an application number: `<prefix><year><seq padded to 4>`, e.g. APP20260001.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s%d%04d", prefix, year, seq)
}

func (svc *Service) nextNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := svc.repo.NextSequence(ctx, fmt.Sprintf("application_%d", year))
	if err != nil {
		return "", errors.Wrap(err, "incrementing application counter")
	}
	return FormatNumber(svc.conf.Admissions.NumberPrefix, year, seq), nil
}

// Submit stores a validated application as pending under a fresh application number,
// then emails the applicant a confirmation.
func (svc *Service) Submit(ctx context.Context, na NewAdmission) (Admission, error) {
	now := time.Now().UTC()
	adm := na.toAdmission()
	adm.Status = StatusPending
	adm.DateSubmitted = now
	adm.CreatedAt = now
	adm.UpdatedAt = now

	var created Admission
	for attempt := 0; ; attempt++ {
		if attempt == maxNumberingRetries {
			return Admission{}, ErrNumberExhausted
		}
		number, err := svc.nextNumber(ctx, now)
		if err != nil {
			return Admission{}, err
		}
		adm.ApplicationNumber = number
		created, err = svc.repo.CreateAdmission(ctx, adm)
		if err == nil {
			break
		}
		if errors.Cause(err) != ErrDuplicateNumber {
			return Admission{}, errors.Wrap(err, "inserting admission")
		}
	}

	svc.sendReceivedMail(created)
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Admission, error) {
	return svc.repo.GetAdmission(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Admission, error) {
	return svc.repo.QueryAdmissions(ctx, filter)
}

// GetByEmail returns the latest application submitted with email.
func (svc *Service) GetByEmail(ctx context.Context, email string) (Admission, error) {
	adms, err := svc.repo.QueryAdmissions(ctx, QueryFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return Admission{}, errors.Wrap(err, "querying admissions")
	}
	if len(adms) == 0 {
		return Admission{}, ErrNotFound
	}
	return adms[0], nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := svc.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting admissions")
	}

	byStatus := make(map[string]int, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	stats := Stats{ByStatus: make([]StatusCount, 0, len(AllStatuses))}
	for _, status := range AllStatuses {
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: status, Count: byStatus[status]})
		stats.Total += byStatus[status]
	}
	return stats, nil
}

// UpdateStatus moves an admission to a new status.
// Accepted and rejected admissions are final. Accepting provisions the applicant's pending signup;
// if provisioning fails the previous status is restored and the error returned.
func (svc *Service) UpdateStatus(ctx context.Context, id string, us UpdateStatus) (Admission, error) {
	orig, err := svc.repo.GetAdmission(ctx, id)
	if err != nil {
		return Admission{}, err
	}
	if orig.IsDecided() {
		return Admission{}, ErrAlreadyDecided
	}

	now := time.Now().UTC()
	adm := orig
	adm.Status = us.Status
	if us.AdminNotes != "" {
		adm.AdminNotes = us.AdminNotes
	}
	if us.ReviewedBy != "" {
		adm.ReviewedBy = us.ReviewedBy
	}
	adm.ReviewedAt = &now
	adm.UpdatedAt = now

	adm, err = svc.repo.UpdateAdmissionIf(ctx, adm, orig.Status)
	if err != nil {
		return Admission{}, err
	}

	if adm.Status == StatusAccepted && svc.provisioner != nil {
		if err = svc.provisioner.Provision(ctx, adm); err != nil {
			if _, rErr := svc.repo.UpdateAdmissionIf(ctx, orig, StatusAccepted); rErr != nil {
				return Admission{}, errors.Wrapf(err, "provisioning signup (restoring status: %v)", rErr)
			}
			return Admission{}, errors.Wrap(err, "provisioning signup")
		}
	}

	if orig.Status != adm.Status {
		svc.sendStatusMail(adm)
	}
	return adm, nil
}

func (svc *Service) recipient(adm Admission) mail.Address {
	return mail.Address{Name: adm.FullName(), Address: adm.ContactInfo.Email}
}

type receivedData struct {
	FullName          string
	ApplicationNumber string
}

func (svc *Service) sendReceivedMail(adm Admission) {
	svc.mailSvc.SendMessages(core.NewEmailMessage(
		svc.recipient(adm),
		"Application Received - "+svc.conf.AppName,
		"application_received",
		receivedData{FullName: adm.FullName(), ApplicationNumber: adm.ApplicationNumber},
	))
}

type statusData struct {
	FullName          string
	ApplicationNumber string
	Status            string
	StatusLabel       string
	AdminNotes        string
}

func (svc *Service) sendStatusMail(adm Admission) {
	svc.mailSvc.SendMessages(core.NewEmailMessage(
		svc.recipient(adm),
		fmt.Sprintf("Application %s - %s", StatusLabel(adm.Status), adm.ApplicationNumber),
		"application_status",
		statusData{
			FullName:          adm.FullName(),
			ApplicationNumber: adm.ApplicationNumber,
			Status:            adm.Status,
			StatusLabel:       StatusLabel(adm.Status),
			AdminNotes:        adm.AdminNotes,
		},
	))
}

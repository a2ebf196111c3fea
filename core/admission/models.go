package admission

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalefaith2021/jjschool/core"
)

// Statuses
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
)

var (
	AllStatuses = []string{StatusPending, StatusUnderReview, StatusAccepted, StatusRejected}

	statusLabels = map[string]string{
		StatusPending:     "Pending",
		StatusUnderReview: "Under Review",
		StatusAccepted:    "Accepted",
		StatusRejected:    "Rejected",
	}
)

func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

type (
	PersonalInfo struct {
		FirstName   string    `json:"firstName" bson:"first_name"`
		LastName    string    `json:"lastName" bson:"last_name"`
		DateOfBirth time.Time `json:"dateOfBirth" bson:"date_of_birth"`
		Gender      string    `json:"gender" bson:"gender"`
		Nationality string    `json:"nationality" bson:"nationality"`
	}

	ContactInfo struct {
		Address string `json:"address" bson:"address"`
		Phone   string `json:"phone" bson:"phone"`
		Email   string `json:"email" bson:"email"`
	}

	AcademicInfo struct {
		ApplyingFor    string `json:"applyingFor" bson:"applying_for"`
		AcademicYear   string `json:"academicYear" bson:"academic_year"`
		PreviousSchool string `json:"previousSchool" bson:"previous_school"`
	}

	ParentInfo struct {
		GuardianName  string `json:"guardianName" bson:"guardian_name"`
		Relationship  string `json:"relationship" bson:"relationship"`
		GuardianPhone string `json:"guardianPhone" bson:"guardian_phone"`
		GuardianEmail string `json:"guardianEmail" bson:"guardian_email"`
		Occupation    string `json:"occupation" bson:"occupation"`
	}

	MedicalInfo struct {
		Allergies        string `json:"allergies" bson:"allergies"`
		EmergencyContact string `json:"emergencyContact" bson:"emergency_contact"`
	}

	PaymentInfo struct {
		PaymentMethods []string `json:"paymentMethod" bson:"payment_methods"`
		Reference      string   `json:"reference" bson:"reference"`
	}

	Admission struct {
		ID                string       `json:"id" bson:"_id"`
		ApplicationNumber string       `json:"applicationNumber" bson:"application_number"`
		PersonalInfo      PersonalInfo `json:"personalInfo" bson:"personal_info"`
		ContactInfo       ContactInfo  `json:"contactInfo" bson:"contact_info"`
		AcademicInfo      AcademicInfo `json:"academicInfo" bson:"academic_info"`
		ParentInfo        ParentInfo   `json:"parentInfo" bson:"parent_info"`
		MedicalInfo       MedicalInfo  `json:"medicalInfo" bson:"medical_info"`
		PaymentInfo       PaymentInfo  `json:"paymentInfo" bson:"payment_info"`
		Status            string       `json:"status" bson:"status"`
		DateSubmitted     time.Time    `json:"dateSubmitted" bson:"date_submitted"`
		AdminNotes        string       `json:"adminNotes,omitempty" bson:"admin_notes"`
		ReviewedBy        string       `json:"reviewedBy,omitempty" bson:"reviewed_by"`
		ReviewedAt        *time.Time   `json:"reviewedAt,omitempty" bson:"reviewed_at,omitempty"`
		CreatedAt         time.Time    `json:"createdAt" bson:"created_at"`
		UpdatedAt         time.Time    `json:"updatedAt" bson:"updated_at"`
	}
)

func (a Admission) FullName() string {
	return strings.TrimSpace(a.PersonalInfo.FirstName + " " + a.PersonalInfo.LastName)
}

// IsDecided reports whether the admission reached a terminal status.
func (a Admission) IsDecided() bool {
	return a.Status == StatusAccepted || a.Status == StatusRejected
}

// NewAdmission is the flat payload of the public application form.
type NewAdmission struct {
	// personal
	FirstName   string `json:"firstName" validate:"notblank,max=100"`
	LastName    string `json:"lastName" validate:"notblank,max=100"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,pastdate"`
	Gender      string `json:"gender" validate:"required,oneof=male female"`
	Nationality string `json:"nationality" validate:"notblank"`

	// contact
	Address string `json:"address" validate:"notblank"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Email   string `json:"email" validate:"required,email"`

	// academic
	ApplyingFor    string `json:"applyingFor" validate:"required,oneof=form1 form2 form3 form4"`
	AcademicYear   string `json:"academicYear" validate:"notblank"`
	PreviousSchool string `json:"previousSchool" validate:"notblank"`

	// parent/guardian
	GuardianName  string `json:"guardianName" validate:"notblank"`
	Relationship  string `json:"relationship" validate:"required,oneof=father mother guardian other"`
	GuardianPhone string `json:"guardianPhone" validate:"required,phone"`
	GuardianEmail string `json:"guardianEmail" validate:"omitempty,email"`
	Occupation    string `json:"occupation"`

	// medical
	Allergies        string `json:"allergies"`
	EmergencyContact string `json:"emergencyContact" validate:"notblank"`

	// payment
	PaymentMethods []string `json:"paymentMethod"`
	Reference      string   `json:"reference" validate:"notblank"`
}

// Validate cleans the payload and checks every field, reporting all failures at once.
func (na *NewAdmission) Validate(validate *validator.Validate) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.DateOfBirth = core.CleanString(na.DateOfBirth)
	na.Gender = core.CleanString(na.Gender, true /* lower */)
	na.Nationality = core.CleanString(na.Nationality)
	na.Address = core.CleanString(na.Address)
	na.Phone = core.CleanString(na.Phone)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.ApplyingFor = core.CleanString(na.ApplyingFor, true /* lower */)
	na.AcademicYear = core.CleanString(na.AcademicYear)
	na.PreviousSchool = core.CleanString(na.PreviousSchool)
	na.GuardianName = core.CleanString(na.GuardianName)
	na.Relationship = core.CleanString(na.Relationship, true /* lower */)
	na.GuardianPhone = core.CleanString(na.GuardianPhone)
	na.GuardianEmail = core.CleanString(na.GuardianEmail, true /* lower */)
	na.Occupation = core.CleanString(na.Occupation)
	na.Allergies = core.CleanString(na.Allergies)
	na.EmergencyContact = core.CleanString(na.EmergencyContact)
	na.PaymentMethods = core.CleanStrings(na.PaymentMethods)
	na.Reference = core.CleanString(na.Reference)
	return validate.Struct(na)
}

func (na NewAdmission) toAdmission() Admission {
	dob, _ := core.ParseDate(na.DateOfBirth) // validated
	methods := na.PaymentMethods
	if methods == nil {
		methods = []string{}
	}
	return Admission{
		PersonalInfo: PersonalInfo{
			FirstName:   na.FirstName,
			LastName:    na.LastName,
			DateOfBirth: dob,
			Gender:      na.Gender,
			Nationality: na.Nationality,
		},
		ContactInfo: ContactInfo{
			Address: na.Address,
			Phone:   na.Phone,
			Email:   na.Email,
		},
		AcademicInfo: AcademicInfo{
			ApplyingFor:    na.ApplyingFor,
			AcademicYear:   na.AcademicYear,
			PreviousSchool: na.PreviousSchool,
		},
		ParentInfo: ParentInfo{
			GuardianName:  na.GuardianName,
			Relationship:  na.Relationship,
			GuardianPhone: na.GuardianPhone,
			GuardianEmail: na.GuardianEmail,
			Occupation:    na.Occupation,
		},
		MedicalInfo: MedicalInfo{
			Allergies:        na.Allergies,
			EmergencyContact: na.EmergencyContact,
		},
		PaymentInfo: PaymentInfo{
			PaymentMethods: methods,
			Reference:      na.Reference,
		},
	}
}

type UpdateStatus struct {
	Status     string `json:"status" validate:"required,oneof=pending under_review accepted rejected"`
	AdminNotes string `json:"adminNotes" validate:"max=2000"`
	ReviewedBy string `json:"reviewedBy" validate:"max=200"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	us.AdminNotes = core.CleanString(us.AdminNotes)
	us.ReviewedBy = core.CleanString(us.ReviewedBy)
	return validate.Struct(us)
}

type QueryFilter struct {
	Status string `query:"status"`
	Search string `query:"search"`
	Email  string `query:"email"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
	qf.Email = core.CleanString(qf.Email, true /* lower */)
}

// Matches reports whether adm satisfies the filter. Used by stores that filter in memory.
func (qf QueryFilter) Matches(adm Admission) bool {
	if qf.Status != "" && adm.Status != qf.Status {
		return false
	}
	if qf.Email != "" && adm.ContactInfo.Email != qf.Email {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(adm.FullName()), s) ||
			strings.Contains(strings.ToLower(adm.ApplicationNumber), s) ||
			strings.Contains(adm.ContactInfo.Email, s)
	}
	return true
}

type StatusCount struct {
	Status string `json:"status" bson:"_id" db:"status"`
	Count  int    `json:"count" bson:"count" db:"count"`
}

type Stats struct {
	Total    int           `json:"total"`
	ByStatus []StatusCount `json:"byStatus"`
}

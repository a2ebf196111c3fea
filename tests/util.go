package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/user"
	logsvc "github.com/mwalefaith2021/jjschool/services/logger"
)

// NewConfig returns a test configuration backed by the in-memory store and the console email backend.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "J & J Secondary School",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "J & J Secondary School <noreply@jjschool.local>",
		Server: core.ServerConfig{
			Host:                      "localhost",
			AllowedOrigins:            []string{"*"},
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			DisableReqLogs:            true,
		},
		Database: core.DatabaseConfig{Engine: "memory", Name: "jjschool_test"},
		Email: core.EmailConfig{
			Backend:     "console",
			MaxAttempts: 1,
			LogSize:     50,
		},
		Admissions: core.AdmissionsConfig{
			NumberPrefix: "APP",
			OTPDigits:    6,
			OTPTTL:       30 * time.Minute,
		},
		Admin: core.AdminConfig{
			Username: "admin@jjmw",
			Password: "adminPass1",
			Email:    "admin@jjmw.local",
			FullName: "System Administrator",
		},
	}
}

// NewValidator returns a validator with every custom tag & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(io.Discard, "TEST", conf)
	logger.Enable(false)
	return logger
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fullName, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:  fullName,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewAdmission returns a valid application form for firstName lastName.
func NewAdmission(firstName, lastName, email string) admission.NewAdmission {
	return admission.NewAdmission{
		FirstName:        firstName,
		LastName:         lastName,
		DateOfBirth:      "2010-04-12",
		Gender:           "female",
		Nationality:      "Malawian",
		Address:          "P.O. Box 12, Zomba",
		Phone:            "+265 991 234 567",
		Email:            email,
		ApplyingFor:      "form2",
		AcademicYear:     "2026/2027",
		PreviousSchool:   "Zomba Primary",
		GuardianName:     "Grace Banda",
		Relationship:     "mother",
		GuardianPhone:    "+265 888 765 432",
		EmergencyContact: "+265 888 765 432",
		PaymentMethods:   []string{"airtel_money"},
		Reference:        "TX-0001",
	}
}

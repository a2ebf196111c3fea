package signup

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalefaith2021/jjschool/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	// StatusAll lists signups regardless of their status.
	StatusAll = "all"
)

var AllStatuses = []string{StatusPending, StatusApproved, StatusRejected}

// PendingSignup bridges an accepted admission and the student account created on approval.
type PendingSignup struct {
	ID              string    `json:"id" bson:"_id" db:"id"`
	ApplicationID   string    `json:"applicationId" bson:"application_id" db:"application_id"`
	Email           string    `json:"email" bson:"email" db:"email"`
	FullName        string    `json:"fullName" bson:"full_name" db:"full_name"`
	DesiredUsername string    `json:"desiredUsername" bson:"desired_username" db:"desired_username"`
	OTP             string    `json:"otp" bson:"otp" db:"otp"`
	OTPExpiresAt    time.Time `json:"otpExpiresAt" bson:"otp_expires_at" db:"otp_expires_at"`
	Status          string    `json:"status" bson:"status" db:"status"`
	Reason          string    `json:"reason,omitempty" bson:"reason" db:"reason"`
	UserID          string    `json:"userId,omitempty" bson:"user_id" db:"user_id"`
	Username        string    `json:"username,omitempty" bson:"username" db:"username"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

func (ps PendingSignup) OTPExpired(now time.Time) bool {
	return !now.Before(ps.OTPExpiresAt)
}

// NewSignup is the admin payload to provision a signup for an already accepted application.
type NewSignup struct {
	ApplicationID string `json:"applicationId" validate:"notblank"`
}

func (ns *NewSignup) Validate(validate *validator.Validate) error {
	ns.ApplicationID = core.CleanString(ns.ApplicationID)
	return validate.Struct(ns)
}

type RejectSignup struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (rs *RejectSignup) Validate(validate *validator.Validate) error {
	rs.Reason = core.CleanString(rs.Reason)
	return validate.Struct(rs)
}

type GetFilter struct {
	ID            string
	ApplicationID string
}

type QueryFilter struct {
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

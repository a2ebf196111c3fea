package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/mwalefaith2021/jjschool/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var AllRoles = []string{RoleAdmin, RoleStudent}

type User struct {
	ID                    string     `json:"id" bson:"_id" db:"id"`
	Username              string     `json:"username" bson:"username" db:"username"`
	Email                 string     `json:"email" bson:"email" db:"email"`
	FullName              string     `json:"fullName" bson:"full_name" db:"full_name"`
	Role                  string     `json:"role" bson:"role" db:"role"`
	IsActive              bool       `json:"isActive" bson:"is_active" db:"is_active"`
	RequiresPasswordReset bool       `json:"requiresPasswordReset" bson:"requires_password_reset" db:"requires_password_reset"`
	PasswordHash          []byte     `json:"-" bson:"password_hash" db:"password_hash"`
	LastLogin             *time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty" db:"last_login"` // UTC
	CreatedAt             time.Time  `json:"createdAt" bson:"created_at" db:"created_at"`                     // UTC
	UpdatedAt             time.Time  `json:"updatedAt" bson:"updated_at" db:"updated_at"`                     // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// NewUser contains information needed by an admin to register a new User.
type NewUser struct {
	Username              string `json:"username" validate:"required,min=3,max=64,username"`
	Email                 string `json:"email" validate:"required,email"`
	FullName              string `json:"fullName" validate:"notblank"`
	Password              string `json:"password" validate:"required"`
	Role                  string `json:"role" validate:"omitempty,oneof=admin student"`
	RequiresPasswordReset bool   `json:"requiresPasswordReset"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	return validate.Struct(nu)
}

// NewStudent is used when provisioning a student account from an approved signup.
// Username is the desired base username, suffixed on collision.
type NewStudent struct {
	Username string
	Email    string
	FullName string
	Password string
}

// UpdateStudent defines what may be modified on a student record.
type UpdateStudent struct {
	FullName string `json:"fullName"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FullName = core.CleanString(us.FullName)
	us.Email = core.CleanString(us.Email, true /* lower */)
	return validate.Struct(us)
}

type ChangePassword struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(cp)
}

// GetFilter fields are OR'ed; the first non-empty one wins in this order: ID, Username, Email.
type GetFilter struct {
	ID       string
	Username string
	Email    string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	IsActive    *bool     `query:"isActive"`
	CreatedFrom time.Time `query:"createdFrom"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// Matches reports whether usr satisfies the filter. Used by stores that filter in memory.
func (qf QueryFilter) Matches(usr User) bool {
	if qf.Role != "" && usr.Role != qf.Role {
		return false
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(usr.FullName), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s)
	}
	return true
}

// Stats summarizes the student population.
type Stats struct {
	TotalActive  int `json:"total"`
	NewThisMonth int `json:"newThisMonth"`
}

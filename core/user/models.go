package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Role is the closed set of portals a User may belong to. Both the registration flow
// and the notification visibility rule switch on it exhaustively; adding a role means
// the compiler-visible switches below must be revisited.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

var AllRoles = []Role{RoleAdmin, RoleInstructor, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// DefaultMaxHoursPerWeek is the teaching load assigned to a new instructor profile
// when none is provided.
const DefaultMaxHoursPerWeek = 20

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Department   string    `json:"department"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword runs in time independent of where a mismatch occurs;
// a wrong password is reported via the returned error, never a panic.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u *User) IsStudent() bool    { return u.Role == RoleStudent }

// TimeRange bounds an availability slot, "HH:MM"-formatted.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// InstructorProfile is owned 1:1 by a User with RoleInstructor; it is created in the
// same logical transaction as the User and deleted when the User is deleted.
type InstructorProfile struct {
	UserID          string               `json:"user_id"`
	MaxHoursPerWeek int                  `json:"max_hours_per_week"`
	Specializations []string             `json:"specializations"`
	Availability    map[string]TimeRange `json:"availability"` // day -> time range
}

// StudentProfile is owned 1:1 by a User with RoleStudent; same lifecycle coupling as
// InstructorProfile.
type StudentProfile struct {
	UserID          string   `json:"user_id"`
	StudentNumber   string   `json:"student_id"`
	Department      string   `json:"department"`
	Year            int      `json:"year"`
	Section         string   `json:"section"`
	EnrolledCourses []string `json:"enrolled_courses"`
}

// NewUser contains information needed to register a new User. The role-specific
// payloads are explicit variants resolved by the Role discriminator: at most the one
// matching Role is consulted, the other is ignored.
type NewUser struct {
	Name       string                `json:"name" validate:"required"`
	Email      string                `json:"email" validate:"required,email"`
	Password   string                `json:"password" validate:"required"`
	Department string                `json:"department"`
	Role       Role                  `json:"role" validate:"required,role"`
	Instructor *NewInstructorProfile `json:"instructor,omitempty"`
	Student    *NewStudentProfile    `json:"student,omitempty"`
}

type NewInstructorProfile struct {
	MaxHoursPerWeek int                  `json:"max_hours_per_week" validate:"omitempty,gt=0"`
	Specializations []string             `json:"specializations"`
	Availability    map[string]TimeRange `json:"availability"`
}

type NewStudentProfile struct {
	StudentNumber string `json:"student_id"`
	Year          int    `json:"year" validate:"omitempty,gte=1"`
	Section       string `json:"section"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email)
	nu.Department = core.CleanString(nu.Department)

	if err := svc.validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkEmailUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	IsActive   *bool  `json:"is_active"`
}

// ChangeUserPassword carries a password change for an authenticated user.
type ChangeUserPassword struct {
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (cp ChangeUserPassword) Validate(svc *Service) error { return svc.validate.Struct(cp) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(svc *Service) error { return svc.validate.Struct(rp) }

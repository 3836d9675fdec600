package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserDisabled    = errors.New("this account has been deactivated")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByEmail matches the stored email exactly, case included.
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error

		CreateInstructorProfile(ctx context.Context, prof InstructorProfile) (InstructorProfile, error)
		GetInstructorProfile(ctx context.Context, userID string) (InstructorProfile, error)
		DeleteInstructorProfile(ctx context.Context, userID string) error

		CreateStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)
		GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error)
		DeleteStudentProfile(ctx context.Context, userID string) error
	}

	Service struct {
		repo     Repository
		tokens   *TokenService
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
		log      core.Logger
	}
)

func NewService(
	repo Repository,
	tokens *TokenService,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeout = conf.PasswordResetTimeout
	return &Service{
		repo:     repo,
		tokens:   tokens,
		mailSvc:  mailSvc,
		validate: validate,
		conf:     conf,
		log:      logger,
	}
}

func (svc *Service) checkEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.TODO(), email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a new User along with the profile variant matching their role,
// issues a login token and sends a welcome email. The User row and its profile form
// one logical unit: if the profile write fails, the just-created User is deleted so
// no principal is left without its portal data.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, string, error) {
	now := time.Now().UTC()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       nu.Role,
		Department: nu.Department,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, "", errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, "", errors.Wrap(err, "creating user")
	}

	if err = svc.createProfile(ctx, usr, nu); err != nil {
		if delErr := svc.repo.DeleteUser(ctx, usr.ID); delErr != nil {
			svc.log.Error(fmt.Sprintf("rolling back user %s after profile failure", usr.ID), "error", delErr)
			return User{}, "", errors.Wrapf(err, "creating profile (user %s rollback failed)", usr.ID)
		}
		return User{}, "", errors.Wrap(err, "creating profile")
	}

	token, err := svc.tokens.Issue(usr)
	if err != nil {
		return User{}, "", err
	}

	svc.sendWelcomeMail(usr)
	usr.PasswordHash = nil
	return usr, token, nil
}

func (svc *Service) createProfile(ctx context.Context, usr User, nu NewUser) error {
	switch usr.Role {
	case RoleAdmin:
		return nil // admins carry no portal profile
	case RoleInstructor:
		prof := InstructorProfile{
			UserID:          usr.ID,
			MaxHoursPerWeek: DefaultMaxHoursPerWeek,
			Specializations: []string{},
			Availability:    map[string]TimeRange{},
		}
		if nu.Instructor != nil {
			if nu.Instructor.MaxHoursPerWeek > 0 {
				prof.MaxHoursPerWeek = nu.Instructor.MaxHoursPerWeek
			}
			if nu.Instructor.Specializations != nil {
				prof.Specializations = nu.Instructor.Specializations
			}
			if nu.Instructor.Availability != nil {
				prof.Availability = nu.Instructor.Availability
			}
		}
		_, err := svc.repo.CreateInstructorProfile(ctx, prof)
		return err
	case RoleStudent:
		prof := StudentProfile{
			UserID:          usr.ID,
			StudentNumber:   newStudentNumber(),
			Department:      usr.Department,
			Year:            1,
			EnrolledCourses: []string{},
		}
		if nu.Student != nil {
			if nu.Student.StudentNumber != "" {
				prof.StudentNumber = nu.Student.StudentNumber
			}
			if nu.Student.Year > 0 {
				prof.Year = nu.Student.Year
			}
			prof.Section = nu.Student.Section
		}
		_, err := svc.repo.CreateStudentProfile(ctx, prof)
		return err
	}
	return core.NewValidationError(errors.Errorf("unknown role %q", usr.Role))
}

func newStudentNumber() string {
	return "S-" + uuid.NewString()[:8]
}

// Authenticate verifies the email/password pair and returns the matching User with a
// fresh token. A missing account and a bad password are distinct failures; the email
// is trimmed but never lowercased, lookup is exact.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (User, string, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email))
	if err != nil {
		return User{}, "", err // ErrNotFound passes through untouched
	}
	if err = usr.CheckPassword(password); err != nil {
		return User{}, "", ErrInvalidPassword
	}
	if !usr.IsActive {
		return User{}, "", ErrUserDisabled
	}

	token, err := svc.tokens.Issue(usr)
	if err != nil {
		return User{}, "", err
	}
	if usr, err = svc.setLastLogin(ctx, usr); err != nil {
		return User{}, "", errors.Wrap(err, "setting last login")
	}
	usr.PasswordHash = nil
	return usr, token, nil
}

func (svc *Service) setLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email))
}

func (svc *Service) GetInstructorProfile(ctx context.Context, userID string) (InstructorProfile, error) {
	return svc.repo.GetInstructorProfile(ctx, userID)
}

func (svc *Service) GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error) {
	return svc.repo.GetStudentProfile(ctx, userID)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if uu.Name != "" {
		usr.Name = core.CleanString(uu.Name)
	}
	if uu.Department != "" {
		usr.Department = core.CleanString(uu.Department)
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetPassword(ctx context.Context, id, password string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete removes the User and then their profile records. Profile cleanup is
// best-effort; the User deletion is the authoritative completion signal.
func (svc *Service) Delete(ctx context.Context, id string) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteUser(ctx, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}

	switch usr.Role {
	case RoleInstructor:
		err = svc.repo.DeleteInstructorProfile(ctx, id)
	case RoleStudent:
		err = svc.repo.DeleteStudentProfile(ctx, id)
	}
	if err != nil && err != ErrNotFound {
		svc.log.Warn(fmt.Sprintf("deleting profile for user %s", id), "error", err)
	}
	return nil
}

// RequestPasswordReset emails a one-time reset link. The caller is expected to treat
// ErrNotFound as success so account existence is not leaked.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	_, err = svc.SetPassword(ctx, usr.ID, rp.Password)
	return err
}

func (svc *Service) sendWelcomeMail(usr User) {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to %s! Your %s account is ready.\n\nSign in at %s to get started.",
		usr.Name, svc.conf.AppName, usr.Role, svc.conf.FrontendBaseURL,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("Welcome to %s", svc.conf.AppName),
		Body:    body,
	})
}

func (svc *Service) sendPasswordResetMail(usr User) {
	url := fmt.Sprintf("%s/password-reset?t=%s&uid=%s", svc.conf.FrontendBaseURL, makeToken(usr), EncodeUID(usr))
	body := fmt.Sprintf(
		"Hi %s,\n\nYou requested a password reset on %s.\n\nFollow this link to set a new password: %s\n\n"+
			"If you did not request this, you can safely ignore this email.",
		usr.Name, svc.conf.AppName, url,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("%s password reset", svc.conf.AppName),
		Body:    body,
	})
}

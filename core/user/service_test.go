package user

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// memRepo is a map-backed Repository for exercising the service without a database.
type memRepo struct {
	users       map[string]User
	instructors map[string]InstructorProfile
	students    map[string]StudentProfile

	failProfileWrites bool
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		users:       make(map[string]User),
		instructors: make(map[string]InstructorProfile),
		students:    make(map[string]StudentProfile),
	}
}

func (r *memRepo) CheckEmailUniqueness(_ context.Context, email string, exclUsers ...User) error {
	for _, usr := range r.users {
		if usr.Email != email {
			continue
		}
		var excluded bool
		for _, ex := range exclUsers {
			if ex.ID == usr.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *memRepo) CreateUser(_ context.Context, usr User) (User, error) {
	usr.ID = uuid.NewString()
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *memRepo) QueryAllUsers(_ context.Context) ([]User, error) {
	users := make([]User, 0, len(r.users))
	for _, usr := range r.users {
		users = append(users, usr)
	}
	return users, nil
}

func (r *memRepo) GetUserByID(_ context.Context, id string) (User, error) {
	if usr, ok := r.users[id]; ok {
		return usr, nil
	}
	return User{}, ErrNotFound
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, usr := range r.users {
		if usr.Email == email { // exact match, case included
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memRepo) UpdateUser(_ context.Context, usr User) (User, error) {
	if _, ok := r.users[usr.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *memRepo) DeleteUser(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memRepo) CreateInstructorProfile(_ context.Context, prof InstructorProfile) (InstructorProfile, error) {
	if r.failProfileWrites {
		return InstructorProfile{}, errors.New("profile store down")
	}
	r.instructors[prof.UserID] = prof
	return prof, nil
}

func (r *memRepo) GetInstructorProfile(_ context.Context, userID string) (InstructorProfile, error) {
	if prof, ok := r.instructors[userID]; ok {
		return prof, nil
	}
	return InstructorProfile{}, ErrNotFound
}

func (r *memRepo) DeleteInstructorProfile(_ context.Context, userID string) error {
	delete(r.instructors, userID)
	return nil
}

func (r *memRepo) CreateStudentProfile(_ context.Context, prof StudentProfile) (StudentProfile, error) {
	if r.failProfileWrites {
		return StudentProfile{}, errors.New("profile store down")
	}
	r.students[prof.UserID] = prof
	return prof, nil
}

func (r *memRepo) GetStudentProfile(_ context.Context, userID string) (StudentProfile, error) {
	if prof, ok := r.students[userID]; ok {
		return prof, nil
	}
	return StudentProfile{}, ErrNotFound
}

func (r *memRepo) DeleteStudentProfile(_ context.Context, userID string) error {
	delete(r.students, userID)
	return nil
}

type mailRecorder struct {
	msgs []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(msgs ...*core.EmailMessage) {
	m.msgs = append(m.msgs, msgs...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, repo Repository) (*Service, *mailRecorder) {
	t.Helper()

	conf := &core.Config{
		AppName:              "Academia",
		SecretKey:            "secret",
		TokenLifetime:        time.Hour,
		PasswordResetTimeout: 3 * 24 * time.Hour,
		FrontendBaseURL:      "http://localhost:3000",
	}
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, trans)
	RegisterValidators(validate, trans)

	mailRec := &mailRecorder{}
	svc := NewService(repo, NewTokenService(conf), mailRec, validate, conf, nopLogger{})
	return svc, mailRec
}

func TestService_RegisterStudent(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, mailRec := newTestService(t, repo)

	nu := NewUser{
		Name:       "Jane Poe",
		Email:      "jane@academia.test",
		Password:   "S3cret#pass",
		Department: "Mathematics",
		Role:       RoleStudent,
		Student:    &NewStudentProfile{Year: 2, Section: "B"},
	}
	if err := nu.Validate(svc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	usr, token, err := svc.Register(ctx, nu)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if usr.ID == "" {
		t.Error("Register() returned user without ID")
	}
	if !usr.IsActive {
		t.Error("new user should be active")
	}

	claims, ok := svc.tokens.Verify(token)
	if !ok {
		t.Fatal("issued token does not verify")
	}
	if claims.Subject != usr.ID || claims.Role != RoleStudent {
		t.Errorf("claims = (%q, %q), want (%q, %q)", claims.Subject, claims.Role, usr.ID, RoleStudent)
	}

	prof, err := repo.GetStudentProfile(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetStudentProfile() error = %v", err)
	}
	if prof.StudentNumber == "" {
		t.Error("student number should be defaulted")
	}
	if prof.Year != 2 || prof.Section != "B" {
		t.Errorf("profile = %+v", prof)
	}
	if prof.Department != "Mathematics" {
		t.Errorf("profile.Department = %q", prof.Department)
	}

	if len(mailRec.msgs) != 1 || !strings.Contains(mailRec.msgs[0].Subject, "Welcome") {
		t.Errorf("expected 1 welcome email, got %d", len(mailRec.msgs))
	}
}

func TestService_RegisterInstructorDefaults(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, _ := newTestService(t, repo)

	usr, _, err := svc.Register(ctx, NewUser{
		Name:     "John Doe",
		Email:    "john@academia.test",
		Password: "S3cret#pass",
		Role:     RoleInstructor,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	prof, err := repo.GetInstructorProfile(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetInstructorProfile() error = %v", err)
	}
	if prof.MaxHoursPerWeek != DefaultMaxHoursPerWeek {
		t.Errorf("MaxHoursPerWeek = %d, want %d", prof.MaxHoursPerWeek, DefaultMaxHoursPerWeek)
	}
	if prof.Specializations == nil || prof.Availability == nil {
		t.Error("collections should default to empty, not nil")
	}
}

func TestService_RegisterRollsBackUserOnProfileFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.failProfileWrites = true
	svc, _ := newTestService(t, repo)

	_, _, err := svc.Register(ctx, NewUser{
		Name:     "John Doe",
		Email:    "john@academia.test",
		Password: "S3cret#pass",
		Role:     RoleInstructor,
	})
	if err == nil {
		t.Fatal("Register() error = nil, want profile failure")
	}
	if len(repo.users) != 0 {
		t.Errorf("user row should have been rolled back, found %d users", len(repo.users))
	}
}

func TestService_DuplicateEmailRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, _ := newTestService(t, repo)

	nu := NewUser{Name: "John Doe", Email: "john@academia.test", Password: "S3cret#pass", Role: RoleAdmin}
	if _, _, err := svc.Register(ctx, nu); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := nu.Validate(svc)
	if err == nil {
		t.Fatal("Validate() error = nil, want duplicate email")
	}
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %T, want *core.ValidationError", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, _ := newTestService(t, repo)

	usr, _, err := svc.Register(ctx, NewUser{
		Name:     "John Doe",
		Email:    "John@Academia.test",
		Password: "S3cret#pass",
		Role:     RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("unknown email", func(t *testing.T) {
		if _, _, err := svc.Authenticate(ctx, "nobody@academia.test", "S3cret#pass"); err != ErrNotFound {
			t.Errorf("Authenticate() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("email lookup is case sensitive", func(t *testing.T) {
		if _, _, err := svc.Authenticate(ctx, "john@academia.test", "S3cret#pass"); err != ErrNotFound {
			t.Errorf("Authenticate() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, _, err := svc.Authenticate(ctx, "John@Academia.test", "nope nope"); err != ErrInvalidPassword {
			t.Errorf("Authenticate() error = %v, want %v", err, ErrInvalidPassword)
		}
	})

	t.Run("ok", func(t *testing.T) {
		got, token, err := svc.Authenticate(ctx, "  John@Academia.test  ", "S3cret#pass")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if got.ID != usr.ID {
			t.Errorf("user.ID = %q, want %q", got.ID, usr.ID)
		}
		if token == "" {
			t.Error("expected a token")
		}
		if got.LastLogin.IsZero() {
			t.Error("LastLogin should be set")
		}
		if got.PasswordHash != nil {
			t.Error("password hash should be stripped")
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		inactive := false
		if _, err := svc.Update(ctx, usr.ID, UpdateUser{IsActive: &inactive}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if _, _, err := svc.Authenticate(ctx, "John@Academia.test", "S3cret#pass"); err != ErrUserDisabled {
			t.Errorf("Authenticate() error = %v, want %v", err, ErrUserDisabled)
		}
	})
}

func TestService_PasswordHashNeverSerialized(t *testing.T) {
	usr := User{ID: "u1", Email: "t@test.test"}
	_ = usr.SetPassword("S3cret#pass")

	data, err := json.Marshal(usr)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "password") || strings.Contains(string(data), "hash") {
		t.Errorf("serialized user leaks password material: %s", data)
	}
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, mailRec := newTestService(t, repo)

	usr, _, err := svc.Register(ctx, NewUser{
		Name:     "John Doe",
		Email:    "john@academia.test",
		Password: "S3cret#pass",
		Role:     RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	mailRec.msgs = nil

	if err = svc.RequestPasswordReset(ctx, "john@academia.test"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(mailRec.msgs) != 1 {
		t.Fatalf("expected 1 reset email, got %d", len(mailRec.msgs))
	}

	stored, _ := repo.GetUserByID(ctx, usr.ID)
	rp := ResetUserPassword{
		Token:           makeToken(stored),
		UID:             EncodeUID(stored),
		Password:        "An0ther#pass",
		PasswordConfirm: "An0ther#pass",
	}
	if err = svc.ResetPassword(ctx, rp); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, _, err = svc.Authenticate(ctx, "john@academia.test", "An0ther#pass"); err != nil {
		t.Errorf("Authenticate() with new password error = %v", err)
	}

	// token is one-time: the password change invalidates it
	if err = svc.ResetPassword(ctx, rp); err == nil {
		t.Error("ResetPassword() with used token error = nil, want invalid token")
	}
}

func TestService_DeleteCascadesProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc, _ := newTestService(t, repo)

	usr, _, err := svc.Register(ctx, NewUser{
		Name:     "Jane Poe",
		Email:    "jane@academia.test",
		Password: "S3cret#pass",
		Role:     RoleStudent,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err = svc.Delete(ctx, usr.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err = repo.GetUserByID(ctx, usr.ID); err != ErrNotFound {
		t.Errorf("user should be gone, got %v", err)
	}
	if _, err = repo.GetStudentProfile(ctx, usr.ID); err != ErrNotFound {
		t.Errorf("student profile should be gone, got %v", err)
	}

	if err = svc.Delete(ctx, usr.ID); err != ErrNotFound {
		t.Errorf("Delete() on missing user error = %v, want %v", err, ErrNotFound)
	}
}

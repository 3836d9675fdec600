package notification

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type memRepo struct {
	notifs map[string]Notification
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{notifs: make(map[string]Notification)}
}

func (r *memRepo) CreateNotification(_ context.Context, n Notification) (Notification, error) {
	n.ID = uuid.NewString()
	r.notifs[n.ID] = n
	return n, nil
}

func (r *memRepo) GetNotificationByID(_ context.Context, id string) (Notification, error) {
	if n, ok := r.notifs[id]; ok {
		return n, nil
	}
	return Notification{}, ErrNotFound
}

func (r *memRepo) FilterVisibleNotifications(_ context.Context, usr user.User, limit int) ([]Notification, error) {
	var visible []Notification
	for _, n := range r.notifs {
		if n.VisibleTo(usr) {
			visible = append(visible, n)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].CreatedAt.After(visible[j].CreatedAt) })
	if len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

func (r *memRepo) UpdateNotification(_ context.Context, n Notification) (Notification, error) {
	if _, ok := r.notifs[n.ID]; !ok {
		return Notification{}, ErrNotFound
	}
	r.notifs[n.ID] = n
	return n, nil
}

func (r *memRepo) MarkAllReadForUser(_ context.Context, usr user.User, at time.Time) error {
	for id, n := range r.notifs {
		if n.VisibleTo(usr) && !n.Read {
			n.Read = true
			n.ReadAt = &at
			r.notifs[id] = n
		}
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()

	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, trans)
	user.RegisterValidators(validate, trans)
	RegisterValidators(validate, trans)
	return NewService(repo, validate, nopLogger{})
}

func TestNotification_VisibleTo(t *testing.T) {
	student := user.User{ID: "s1", Role: user.RoleStudent}
	otherStudent := user.User{ID: "s2", Role: user.RoleStudent}
	instructor := user.User{ID: "i1", Role: user.RoleInstructor}

	tests := []struct {
		name  string
		notif Notification
		usr   user.User
		want  bool
	}{
		{name: "direct target matches", notif: Notification{TargetUserID: "s1"}, usr: student, want: true},
		{name: "direct target other user", notif: Notification{TargetUserID: "s1"}, usr: otherStudent, want: false},
		{name: "role target matches", notif: Notification{TargetRole: user.RoleStudent}, usr: student, want: true},
		{name: "role target other role", notif: Notification{TargetRole: user.RoleStudent}, usr: instructor, want: false},
		{
			// a user target narrows the audience even when the role would match
			name:  "user target beats matching role",
			notif: Notification{TargetRole: user.RoleStudent, TargetUserID: "s1"},
			usr:   otherStudent,
			want:  false,
		},
		{name: "no target", notif: Notification{}, usr: student, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.notif.VisibleTo(tt.usr); got != tt.want {
				t.Errorf("VisibleTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemRepo())

	t.Run("defaults type to info", func(t *testing.T) {
		nn := NewNotification{Title: "Exam moved", Message: "Now in room 204", TargetRole: user.RoleStudent}
		if err := nn.Validate(svc); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		n, err := svc.Create(ctx, nn)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if n.Type != TypeInfo {
			t.Errorf("Type = %q, want %q", n.Type, TypeInfo)
		}
		if n.Read {
			t.Error("new notification should be unread")
		}
	})

	t.Run("rejects missing target", func(t *testing.T) {
		nn := NewNotification{Title: "Orphan", Message: "Nobody will ever see this"}
		if err := nn.Validate(svc); err == nil {
			t.Error("Validate() error = nil, want missing target")
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		nn := NewNotification{Title: "T", Message: "M", Type: "shouty", TargetRole: user.RoleStudent}
		if err := nn.Validate(svc); err == nil {
			t.Error("Validate() error = nil, want invalid type")
		}
	})
}

func TestService_ListFor(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(t, repo)

	student := user.User{ID: "s1", Role: user.RoleStudent}
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		repo.notifs[fmt.Sprintf("n%d", i)] = Notification{
			ID:         fmt.Sprintf("n%d", i),
			Title:      fmt.Sprintf("n%d", i),
			TargetRole: user.RoleStudent,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	// not visible to the student
	repo.notifs["other"] = Notification{ID: "other", TargetRole: user.RoleInstructor, CreatedAt: base}
	repo.notifs["direct-other"] = Notification{ID: "direct-other", TargetUserID: "s2", CreatedAt: base}

	notifs, err := svc.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("ListFor() error = %v", err)
	}
	if len(notifs) != 5 {
		t.Fatalf("len(notifs) = %d, want 5", len(notifs))
	}
	for i := 1; i < len(notifs); i++ {
		if notifs[i].CreatedAt.After(notifs[i-1].CreatedAt) {
			t.Fatal("notifications are not newest first")
		}
	}
}

func TestService_ListForCapped(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(t, repo)

	student := user.User{ID: "s1", Role: user.RoleStudent}
	base := time.Now().UTC()
	for i := 0; i < MaxListSize+20; i++ {
		id := uuid.NewString()
		repo.notifs[id] = Notification{ID: id, TargetUserID: "s1", CreatedAt: base.Add(time.Duration(i) * time.Second)}
	}

	notifs, err := svc.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("ListFor() error = %v", err)
	}
	if len(notifs) != MaxListSize {
		t.Errorf("len(notifs) = %d, want %d", len(notifs), MaxListSize)
	}
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(t, repo)

	student := user.User{ID: "s1", Role: user.RoleStudent}
	other := user.User{ID: "s2", Role: user.RoleStudent}

	n, err := svc.Create(ctx, NewNotification{Title: "T", Message: "M", TargetUserID: "s1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.MarkRead(ctx, student, "nope"); err != ErrNotFound {
			t.Errorf("MarkRead() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("not visible", func(t *testing.T) {
		if _, err := svc.MarkRead(ctx, other, n.ID); err != ErrNotVisible {
			t.Errorf("MarkRead() error = %v, want %v", err, ErrNotVisible)
		}
	})

	t.Run("ok and idempotent", func(t *testing.T) {
		marked, err := svc.MarkRead(ctx, student, n.ID)
		if err != nil {
			t.Fatalf("MarkRead() error = %v", err)
		}
		if !marked.Read || marked.ReadAt == nil {
			t.Fatal("notification should be read with ReadAt set")
		}

		again, err := svc.MarkRead(ctx, student, n.ID)
		if err != nil {
			t.Fatalf("MarkRead() again error = %v", err)
		}
		if !again.ReadAt.Equal(*marked.ReadAt) {
			t.Error("second MarkRead should not move ReadAt")
		}
	})
}

func TestService_MarkAllReadFor(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(t, repo)

	student := user.User{ID: "s1", Role: user.RoleStudent}
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, NewNotification{Title: "T", Message: "M", TargetRole: user.RoleStudent}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := svc.Create(ctx, NewNotification{Title: "T", Message: "M", TargetRole: user.RoleInstructor}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.MarkAllReadFor(ctx, student); err != nil {
		t.Fatalf("MarkAllReadFor() error = %v", err)
	}

	notifs, err := svc.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("ListFor() error = %v", err)
	}
	for _, n := range notifs {
		if !n.Read {
			t.Errorf("notification %s should be read", n.ID)
		}
	}

	// the instructor notification is untouched
	for _, n := range repo.notifs {
		if n.TargetRole == user.RoleInstructor && n.Read {
			t.Error("instructor notification should remain unread")
		}
	}
}

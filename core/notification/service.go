package notification

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("notification not found")
	ErrNotVisible = errors.New("notification is not visible to this user")
)

// MaxListSize caps how many notifications a single listing returns.
const MaxListSize = 100

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// FilterVisibleNotifications returns the notifications usr may see,
		// newest first, at most limit.
		FilterVisibleNotifications(ctx context.Context, usr user.User, limit int) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		// MarkAllReadForUser marks every unread notification visible to usr as
		// read at the given time.
		MarkAllReadForUser(ctx context.Context, usr user.User, at time.Time) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		log      core.Logger
	}
)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, log: logger}
}

func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	n := Notification{
		Title:        nn.Title,
		Message:      nn.Message,
		Type:         nn.Type,
		TargetRole:   nn.TargetRole,
		TargetUserID: nn.TargetUserID,
		CreatedAt:    time.Now().UTC(),
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	return svc.repo.CreateNotification(ctx, n)
}

// ListFor returns the notifications visible to usr, newest first.
func (svc *Service) ListFor(ctx context.Context, usr user.User) ([]Notification, error) {
	notifs, err := svc.repo.FilterVisibleNotifications(ctx, usr, MaxListSize)
	if err != nil {
		return nil, errors.Wrap(err, "filtering notifications")
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	return notifs, nil
}

// MarkRead flags a notification as read on behalf of usr. Only a user the
// notification is visible to may mark it; marking an already-read notification is a
// no-op, not an error.
func (svc *Service) MarkRead(ctx context.Context, usr user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if !n.VisibleTo(usr) {
		return Notification{}, ErrNotVisible
	}
	if n.Read {
		return n, nil
	}

	now := time.Now().UTC()
	n.Read = true
	n.ReadAt = &now
	return svc.repo.UpdateNotification(ctx, n)
}

// MarkAllReadFor marks everything visible to usr as read. No count is reported;
// callers only learn whether the sweep itself failed.
func (svc *Service) MarkAllReadFor(ctx context.Context, usr user.User) error {
	if err := svc.repo.MarkAllReadForUser(ctx, usr, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sql.DB) *notificationRepository {
	return &notificationRepository{db: sqlx.NewDb(db, "postgres")}
}

type notificationRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Message      string      `db:"message"`
	Type         string      `db:"type"`
	TargetRole   null.String `db:"target_role"`
	TargetUserID null.String `db:"target_user_id"`
	Read         bool        `db:"read"`
	ReadAt       null.Time   `db:"read_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r notificationRow) toCore() notification.Notification {
	n := notification.Notification{
		ID:           r.ID,
		Title:        r.Title,
		Message:      r.Message,
		Type:         r.Type,
		TargetRole:   user.Role(r.TargetRole.String),
		TargetUserID: r.TargetUserID.String,
		Read:         r.Read,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		readAt := r.ReadAt.Time.UTC()
		n.ReadAt = &readAt
	}
	return n
}

func newNotificationRow(n notification.Notification) notificationRow {
	row := notificationRow{
		ID:           n.ID,
		Title:        n.Title,
		Message:      n.Message,
		Type:         n.Type,
		TargetRole:   null.NewString(n.TargetRole.String(), n.TargetRole != ""),
		TargetUserID: null.NewString(n.TargetUserID, n.TargetUserID != ""),
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
	}
	if n.ReadAt != nil {
		row.ReadAt = null.TimeFrom(*n.ReadAt)
	}
	return row
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.NewString()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notification (id, title, message, type, target_role, target_user_id, read, read_at, created_at)
		VALUES (:id, :title, :message, :type, :target_role, :target_user_id, :read, :read_at, :created_at)`,
		newNotificationRow(n),
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toCore(), nil
}

func (repo *notificationRepository) FilterVisibleNotifications(ctx context.Context, usr user.User, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM notification
		WHERE target_user_id = $1 OR (target_role = $2 AND target_user_id IS NULL)
		ORDER BY created_at DESC
		LIMIT $3`,
		usr.ID, usr.Role.String(), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "filtering notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.toCore())
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE notification
		SET title = :title, message = :message, type = :type, target_role = :target_role,
		    target_user_id = :target_user_id, read = :read, read_at = :read_at
		WHERE id = :id`,
		newNotificationRow(n),
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllReadForUser(ctx context.Context, usr user.User, at time.Time) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE notification
		SET read = true, read_at = $3
		WHERE read = false AND (target_user_id = $1 OR (target_role = $2 AND target_user_id IS NULL))`,
		usr.ID, usr.Role.String(), at,
	)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}

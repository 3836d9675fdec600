package notification

import (
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	TypeInfo    = "info"
	TypeWarning = "warning"
	TypeUrgent  = "urgent"
)

type Notification struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Type         string     `json:"type"`
	TargetRole   user.Role  `json:"target_role,omitempty"`
	TargetUserID string     `json:"target_user_id,omitempty"`
	Read         bool       `json:"read"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
}

// VisibleTo reports whether usr may see this notification. A direct target always
// wins: when TargetUserID is set, only that user sees it, regardless of any role
// match. A role target applies only in the absence of a user target.
func (n *Notification) VisibleTo(usr user.User) bool {
	if n.TargetUserID != "" {
		return n.TargetUserID == usr.ID
	}
	return n.TargetRole != "" && n.TargetRole == usr.Role
}

// NewNotification contains information needed to publish a new Notification.
// At least one of TargetRole or TargetUserID must be provided; a notification
// nobody can ever see is rejected at the door.
type NewNotification struct {
	Title        string    `json:"title" validate:"required"`
	Message      string    `json:"message" validate:"required"`
	Type         string    `json:"type" validate:"omitempty,oneof=info warning urgent"`
	TargetRole   user.Role `json:"target_role" validate:"omitempty,role"`
	TargetUserID string    `json:"target_user_id"`
}

func (nn *NewNotification) Validate(svc *Service) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	nn.TargetUserID = core.CleanString(nn.TargetUserID)
	return svc.validate.Struct(nn)
}

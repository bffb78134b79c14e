package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

// Notification represents the notifications table. Title and Message may
// contain {display_name}-style placeholders resolved at render time.
type Notification struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	// ActorUserID is the user whose action produced the notification (nil for system events)
	ActorUserID *int64 `gorm:"column:actor_user_id" json:"actor_user_id,omitempty"`
	// RecipientUserID is the profile the notification is addressed to
	RecipientUserID int64 `gorm:"column:recipient_user_id;not null;index:idx_notifications_recipient" json:"recipient_user_id"`
	// Title is the short template line
	Title string `gorm:"column:title;not null;type:text" json:"title"`
	// Message is the body template
	Message string `gorm:"column:message;not null;type:text" json:"message"`
	// Type classifies the notification
	Type domain.NotificationType `gorm:"column:type;not null;type:text" json:"type"`
	// Read is flipped by the mark-read operation, the only user-facing mutation
	Read bool `gorm:"column:read;not null;default:false" json:"read"`
	// Metadata carries event-specific context (pool id hash, amounts, tx hash)
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	// CreatedAt is the insertion timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// NotificationSetting represents per-user delivery preferences
type NotificationSetting struct {
	UserID       int64 `gorm:"column:user_id;primaryKey"`
	InAppEnabled bool  `gorm:"column:in_app_enabled;not null;default:true"`
	EmailEnabled bool  `gorm:"column:email_enabled;not null;default:true"`
}

// TableName specifies the table name for the NotificationSetting model
func (NotificationSetting) TableName() string {
	return "notification_settings"
}

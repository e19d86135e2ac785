// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the persisted record of an outbound best-effort
// notification. Delivery to the actual channel (push, email) is owned by an
// external service; the engine only enqueues and records.
type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Kind    NotificationKind `json:"kind" gorm:"type:varchar(30);not null;index"`
	Title   string           `json:"title" gorm:"size:255"`
	Message string           `json:"message" gorm:"type:text"`
	Payload JSONB            `json:"payload" gorm:"type:jsonb"`
	SentAt  *time.Time       `json:"sent_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Activity action labels
const (
	ActionCreatedOrder  = "Created Order"
	ActionUpdatedOrder  = "Updated Order"
	ActionDeletedOrder  = "Deleted Order"
	ActionApprovedOrder = "Approved Order"
	ActionRejectedOrder = "Rejected Order"
	ActionMarkedPaid    = "Marked Paid"
)

// ActivityLog tracks Who, What, and When for every order mutation.
// Records are append-only: never updated, never deleted. Order
// association is by convention — the description embeds the literal
// token "Order #<id>" whenever the action pertains to an order.
type ActivityLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action      string     `gorm:"type:varchar(50);not null;index" json:"action"`
	Description string     `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

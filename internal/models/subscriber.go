package models

import "time"

// Subscriber statuses. A bounced address is never reactivated automatically;
// only an explicit re-subscribe moves it back to active.
const (
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
	SubscriberBounced      = "bounced"
)

// Subscriber is a newsletter recipient.
type Subscriber struct {
	BaseModel

	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Status       string    `gorm:"not null;default:'active';index" json:"status"`
	BounceReason string    `json:"bounce_reason,omitempty"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

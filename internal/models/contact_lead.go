package models

import "time"

// Contact lead triage statuses.
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadClosed    = "closed"
)

// ContactLead is an inbound contact-form submission.
type ContactLead struct {
	BaseModel

	Name            string    `gorm:"not null" json:"name"`
	Email           string    `gorm:"not null;index" json:"email"`
	Company         string    `json:"company"`
	Phone           string    `json:"phone"`
	Message         string    `gorm:"type:text;not null" json:"message"`
	ServiceInterest string    `json:"service_interest"`
	Status          string    `gorm:"not null;default:'new';index" json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

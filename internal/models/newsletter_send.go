package models

import "gorm.io/datatypes"

// NewsletterSend records the outcome of one bulk send so partial failures
// remain auditable after the request that triggered them.
type NewsletterSend struct {
	BaseModel

	Subject    string `gorm:"not null" json:"subject"`
	Recipients int    `gorm:"not null" json:"recipients"`
	Sent       int    `gorm:"not null" json:"sent"`
	Failed     int    `gorm:"not null" json:"failed"`

	Errors  datatypes.JSON `json:"errors"`
	Bounced datatypes.JSON `json:"bounced"`

	SentBy string `gorm:"type:uuid;index" json:"sent_by"`
}

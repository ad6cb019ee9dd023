package models

import "time"

// Blog post publication statuses.
const (
	PostDraft     = "draft"
	PostPublished = "published"
)

// BlogPost is an article shown on the public blog once published.
type BlogPost struct {
	BaseModel

	Title            string     `gorm:"not null" json:"title"`
	Slug             string     `gorm:"uniqueIndex;not null" json:"slug"`
	Content          string     `gorm:"type:text;not null" json:"content"`
	Excerpt          string     `gorm:"type:text" json:"excerpt"`
	Author           string     `gorm:"not null;default:'Driftline Team'" json:"author"`
	FeaturedImageURL string     `json:"featured_image_url"`
	Status           string     `gorm:"not null;default:'draft';index" json:"status"`
	PublishedDate    *time.Time `gorm:"index" json:"published_date"`
}

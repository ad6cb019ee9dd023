package models

// Testimonial is a customer quote rendered on the home page.
type Testimonial struct {
	BaseModel

	Name           string `gorm:"not null" json:"name"`
	Title          string `gorm:"not null" json:"title"`
	Company        string `gorm:"not null" json:"company"`
	Quote          string `gorm:"type:text;not null" json:"quote"`
	AvatarURL      string `json:"avatar_url"`
	CompanyLogoURL string `json:"company_logo_url"`
	Featured       bool   `gorm:"default:false;index" json:"featured"`
}

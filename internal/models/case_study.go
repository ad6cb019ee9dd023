package models

import "time"

// CaseStudy is a customer success story published on the marketing site.
type CaseStudy struct {
	BaseModel

	Title        string `gorm:"not null" json:"title"`
	Slug         string `gorm:"uniqueIndex;not null" json:"slug"`
	Company      string `gorm:"not null" json:"company"`
	Industry     string `gorm:"not null" json:"industry"`
	SolutionType string `gorm:"not null" json:"solution_type"`

	Problem  string `gorm:"type:text;not null" json:"problem"`
	Solution string `gorm:"type:text;not null" json:"solution"`
	Results  string `gorm:"type:text;not null" json:"results"`

	TimeToImplementation  string `json:"time_to_implementation"`
	CostSavingsPercent    string `json:"cost_savings_percent"`
	EfficiencyGainPercent string `json:"efficiency_gain_percent"`
	RevenueImpactPercent  string `json:"revenue_impact_percent"`

	FeaturedImageURL string     `json:"featured_image_url"`
	Status           string     `gorm:"not null;default:'draft';index" json:"status"`
	PublishedDate    *time.Time `gorm:"index" json:"published_date"`
}

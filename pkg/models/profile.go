package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Experience is one position on a profile, most recent first.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
	IsCurrent   bool   `json:"is_current"`
}

// Education is one school entry on a profile.
type Education struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Field     string `json:"field,omitempty"`
	StartYear int    `json:"start_year,omitempty"`
	EndYear   int    `json:"end_year,omitempty"`
}

// ProfileFields is what a scrape worker extracts from a single profile page.
type ProfileFields struct {
	Name              string       `json:"name"`
	CurrentTitle      string       `json:"current_title"`
	CurrentCompany    string       `json:"current_company"`
	Industry          string       `json:"industry"`
	Location          string       `json:"location"`
	About             string       `json:"about"`
	ProfilePictureURL string       `json:"profile_picture_url,omitempty"`
	AISummary         string       `json:"ai_summary,omitempty"`
	Skills            []string     `json:"skills"`
	Experience        []Experience `json:"experience"`
	Education         []Education  `json:"education"`
}

// Profile is the stored result for a LinkedIn URL. LinkedInURL is unique;
// re-scraping a URL overwrites the row instead of adding one.
type Profile struct {
	ID                uuid.UUID       `db:"id"                  json:"id"`
	LinkedInURL       string          `db:"linkedin_url"        json:"linkedin_url"`
	Name              string          `db:"name"                json:"name"`
	CurrentTitle      string          `db:"current_title"       json:"current_title"`
	CurrentCompany    string          `db:"current_company"     json:"current_company"`
	Industry          string          `db:"industry"            json:"industry"`
	Location          string          `db:"location"            json:"location"`
	About             string          `db:"about"               json:"about"`
	ProfilePictureURL *string         `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	AISummary         string          `db:"ai_summary"          json:"ai_summary"`
	Skills            []string        `db:"skills"              json:"skills"`
	Experience        []Experience    `db:"experience"          json:"experience"`
	Education         []Education     `db:"education"           json:"education"`
	ScrapedAt         time.Time       `db:"scraped_at"          json:"scraped_at"`
	LastUpdated       time.Time       `db:"last_updated"        json:"last_updated"`
	ScrapingJobID     *uuid.UUID      `db:"scraping_job_id"     json:"scraping_job_id,omitempty"`
	RawData           json.RawMessage `db:"raw_data"            json:"-"`
}

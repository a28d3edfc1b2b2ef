// Package model defines shared data structures for the etl service.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobSourceAdzuna is the job_source value for listings fetched from Adzuna.
const JobSourceAdzuna = "adzuna"

// RawListing is one job posting as returned by the search API.
// It is serialised verbatim into job_data.raw_data (JSONB) for auditability.
type RawListing struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Created      time.Time `json:"created"`
	RedirectURL  string    `json:"redirectUrl,omitempty"`
	SalaryMin    float64   `json:"salaryMin,omitempty"`
	SalaryMax    float64   `json:"salaryMax,omitempty"`
	ContractType string    `json:"contractType,omitempty"`
	ContractTime string    `json:"contractTime,omitempty"`
	Category     string    `json:"category,omitempty"`
}

// ExperienceLevel values mirror the experience_level column.
type ExperienceLevel string

const (
	LevelEntry       ExperienceLevel = "entry"
	LevelMid         ExperienceLevel = "mid"
	LevelSenior      ExperienceLevel = "senior"
	LevelExecutive   ExperienceLevel = "executive"
	LevelUnspecified ExperienceLevel = "unspecified"
)

// ParseLevel converts a stored string back into an ExperienceLevel.
// Matching is case-insensitive; unknown values are an error.
func ParseLevel(s string) (ExperienceLevel, error) {
	l := ExperienceLevel(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LevelEntry, LevelMid, LevelSenior, LevelExecutive, LevelUnspecified:
		return l, nil
	}
	return "", fmt.Errorf("unknown experience level %q", s)
}

// NormalizedJob is a RawListing with the derived experience and skill fields,
// ready for upsert into job_data.
type NormalizedJob struct {
	ID                 int64           `json:"id,omitempty"`
	Title              string          `json:"title"`
	Company            string          `json:"company"`
	Location           string          `json:"location"`
	Description        string          `json:"description"`
	Skills             string          `json:"skills"`
	ExperienceYearsMin *int            `json:"experienceYearsMin"`
	ExperienceYearsMax *int            `json:"experienceYearsMax"`
	ExperienceLevel    ExperienceLevel `json:"experienceLevel"`
	CreatedDate        time.Time       `json:"createdDate"`
	JobSource          string          `json:"jobSource"`
	ExternalID         string          `json:"externalId"`
	RawData            json.RawMessage `json:"rawData"`
}

// SkillList splits the comma-joined Skills column back into its keywords.
func (j NormalizedJob) SkillList() []string {
	if j.Skills == "" {
		return nil
	}
	return strings.Split(j.Skills, ",")
}

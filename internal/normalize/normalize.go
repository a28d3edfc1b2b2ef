// Package normalize derives the structured job_data fields (experience range,
// experience level, skills) from a raw listing's free-text description.
//
// Normalization is a pure, single-pass transform: no I/O, no shared mutable
// state. A Normalizer is safe for concurrent use.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"jobmate/etl-service/internal/model"
)

// MissingFieldError reports a structurally required value that was nil.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("normalize: missing required field %q", e.Field)
}

// Normalizer holds the compiled skill lookup set.
type Normalizer struct {
	skills []skillMatcher
	source string
}

// New returns a Normalizer matching the given skill keywords.
// An empty list falls back to DefaultSkills.
func New(skills []string) *Normalizer {
	if len(skills) == 0 {
		skills = DefaultSkills
	}
	return &Normalizer{skills: compileSkills(skills), source: model.JobSourceAdzuna}
}

var defaultNormalizer = New(nil)

// Normalize runs the default Normalizer.
func Normalize(raw *model.RawListing) (model.NormalizedJob, error) {
	return defaultNormalizer.Normalize(raw)
}

// Normalize converts raw into a row for job_data. An empty or malformed
// description is not an error: the derived fields keep their defaults.
// The only failure is a nil listing.
//
// RawData is the JSON encoding of raw. Invalid UTF-8 in a string field is
// written as U+FFFD there (encoding/json behaviour); the copied columns keep
// the original bytes. Listings decoded from the API are always valid UTF-8.
func (n *Normalizer) Normalize(raw *model.RawListing) (model.NormalizedJob, error) {
	if raw == nil {
		return model.NormalizedJob{}, &MissingFieldError{Field: "listing"}
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return model.NormalizedJob{}, fmt.Errorf("normalize: encode raw listing %q: %w", raw.ID, err)
	}

	text := scanText(raw.Description)
	yearsMin, yearsMax, _ := extractYears(text)

	return model.NormalizedJob{
		Title:              raw.Title,
		Company:            raw.Company,
		Location:           raw.Location,
		Description:        raw.Description,
		Skills:             strings.Join(extractSkills(text, n.skills), ","),
		ExperienceYearsMin: yearsMin,
		ExperienceYearsMax: yearsMax,
		ExperienceLevel:    extractLevel(text),
		CreatedDate:        raw.Created,
		JobSource:          n.source,
		ExternalID:         raw.ID,
		RawData:            rawJSON,
	}, nil
}

// Experience is the experience portion of a normalized listing, exposed for
// callers that only need to classify free text.
type Experience struct {
	YearsMin *int                  `json:"yearsMin"`
	YearsMax *int                  `json:"yearsMax"`
	Level    model.ExperienceLevel `json:"level"`
	Rule     string                `json:"rule,omitempty"` // name of the years rule that matched
}

// ExtractExperience classifies free text without building a full row.
func ExtractExperience(description string) Experience {
	text := scanText(description)
	lo, hi, rule := extractYears(text)
	return Experience{YearsMin: lo, YearsMax: hi, Level: extractLevel(text), Rule: rule}
}

// Inconsistent reports level/years combinations worth a data-quality warning,
// e.g. "entry level, 10+ years". Output is never changed because of it.
func (e Experience) Inconsistent() bool {
	switch e.Level {
	case model.LevelEntry:
		return e.YearsMin != nil && *e.YearsMin >= 5
	case model.LevelSenior, model.LevelExecutive:
		return e.YearsMax != nil && *e.YearsMax <= 1
	}
	return false
}

// ExperienceOf rebuilds the Experience view of an already normalized job.
func ExperienceOf(j model.NormalizedJob) Experience {
	return Experience{YearsMin: j.ExperienceYearsMin, YearsMax: j.ExperienceYearsMax, Level: j.ExperienceLevel}
}

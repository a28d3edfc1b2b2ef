// Package scraper implements the Adzuna search client and listing filters.
package scraper

import (
	"strings"

	"jobmate/etl-service/internal/model"
)

// ContainsExcludedTerm returns true if any term appears (case-insensitive)
// anywhere in the combined title + company + description text.
func ContainsExcludedTerm(l model.RawListing, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	combined := strings.ToLower(l.Title + " " + l.Company + " " + l.Description)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Dedup keeps the first listing for each external id, preserving order.
// Listings without an id are kept as-is.
func Dedup(listings []model.RawListing) []model.RawListing {
	seen := make(map[string]bool, len(listings))
	out := make([]model.RawListing, 0, len(listings))
	for _, l := range listings {
		if l.ID != "" {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
		}
		out = append(out, l)
	}
	return out
}

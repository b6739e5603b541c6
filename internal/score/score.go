// Package score assigns a deterministic 0-1 confidence value to extracted
// festival data based on which fields were recovered.
package score

import (
	"net/url"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Field weights. Required fields dominate; optional collections only nudge.
const (
	weightName         = 0.20
	weightStartDate    = 0.20
	weightEndDate      = 0.10
	weightVenueName    = 0.15
	weightVenueCity    = 0.10
	weightVenueCountry = 0.10

	weightDescription     = 0.05
	weightWebsite         = 0.05
	weightRegistrationURL = 0.05
	weightTeachers        = 0.02
	weightMusicians       = 0.02
	weightPrices          = 0.03
	weightTags            = 0.03

	bonusValidDateRange   = 0.05
	penaltyInvalidRange   = 0.10
	bonusParseableWebsite = 0.02
)

// maxAchievable is the denominator: the sum of every field weight. Bonuses
// and penalties move the numerator only.
const maxAchievable = weightName + weightStartDate + weightEndDate +
	weightVenueName + weightVenueCity + weightVenueCountry +
	weightDescription + weightWebsite + weightRegistrationURL +
	weightTeachers + weightMusicians + weightPrices + weightTags

// Scorer computes extraction confidence. It is stateless and safe for
// concurrent use.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

// Score returns a confidence in [0, 1]. Missing fields simply contribute
// nothing; the only negative signal is an inverted date range.
func (s *Scorer) Score(data festival.FestivalData) float64 {
	var achieved float64

	if data.Name != "" {
		achieved += weightName
	}
	if !data.StartDate.IsZero() {
		achieved += weightStartDate
	}
	if !data.EndDate.IsZero() {
		achieved += weightEndDate
	}
	if v := data.Venue; v != nil {
		if v.Name != "" {
			achieved += weightVenueName
		}
		if v.City != "" {
			achieved += weightVenueCity
		}
		if v.Country != "" {
			achieved += weightVenueCountry
		}
	}

	if data.Description != "" {
		achieved += weightDescription
	}
	if data.Website != "" {
		achieved += weightWebsite
	}
	if data.RegistrationURL != "" {
		achieved += weightRegistrationURL
	}
	if len(data.Teachers) > 0 {
		achieved += weightTeachers
	}
	if len(data.Musicians) > 0 {
		achieved += weightMusicians
	}
	if len(data.Prices) > 0 {
		achieved += weightPrices
	}
	if len(data.Tags) > 0 {
		achieved += weightTags
	}

	if !data.StartDate.IsZero() && !data.EndDate.IsZero() {
		if !data.EndDate.Before(data.StartDate) {
			achieved += bonusValidDateRange
		} else {
			achieved -= penaltyInvalidRange
		}
	}
	if isHTTPURL(data.Website) {
		achieved += bonusParseableWebsite
	}

	return clamp01(achieved / maxAchievable)
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

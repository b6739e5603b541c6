// Package normalize converts raw extracted fields into the typed
// FestivalData shape with defensive coercion: bad input degrades to absent
// values, it never aborts the pipeline.
package normalize

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/swingradar/festival-crawler/internal/extract"
	"github.com/swingradar/festival-crawler/internal/festival"
)

// Field and collection caps applied during normalization.
const (
	maxStringLen  = 1000
	maxPeople     = 20
	maxTagsPerson = 10
	maxTags       = 50
	maxPrices     = 20

	fallbackName = "Unknown Festival"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02.01.2006",
	"01/02/2006",
}

// Normalizer builds immutable FestivalData values from raw extraction output.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize coerces raw into FestivalData. Unparsable dates become zero
// values rather than fabricated ones; the validator decides whether that is
// acceptable.
func (n *Normalizer) Normalize(raw extract.RawFestival, sourceURL string) festival.FestivalData {
	data := festival.FestivalData{
		Name:            cleanString(raw.Name),
		Description:     cleanString(raw.Description),
		Timezone:        cleanString(raw.Timezone),
		Website:         cleanString(raw.Website),
		RegistrationURL: cleanString(raw.RegistrationURL),
		Email:           cleanString(raw.Email),
		Phone:           cleanString(raw.Phone),
		SourceURL:       sourceURL,
	}
	if data.Name == "" {
		data.Name = fallbackName
	}

	data.StartDate = parseDate(raw.StartDate)
	data.EndDate = parseDate(raw.EndDate)
	// Keep the date-range invariant at the earliest stage: an end before the
	// start collapses to a one-day festival.
	if !data.StartDate.IsZero() && !data.EndDate.IsZero() && data.EndDate.Before(data.StartDate) {
		data.EndDate = data.StartDate
	}
	if d := parseDate(raw.RegistrationDeadline); !d.IsZero() {
		data.RegistrationDeadline = &d
	}

	data.Venue = normalizeVenue(raw.Venue)
	data.Teachers = normalizeTeachers(raw.Teachers)
	data.Musicians = normalizeMusicians(raw.Musicians)
	data.Prices = normalizePrices(raw.Prices)
	data.Tags = normalizeTags(raw.Tags)
	return data
}

func normalizeVenue(raw *extract.RawVenue) *festival.Venue {
	if raw == nil {
		return nil
	}
	v := &festival.Venue{
		Name:       cleanString(raw.Name),
		Address:    cleanString(raw.Address),
		City:       cleanString(raw.City),
		State:      cleanString(raw.State),
		Country:    cleanString(raw.Country),
		PostalCode: cleanString(raw.PostalCode),
	}
	if v.Name == "" && v.City == "" && v.Country == "" {
		return nil
	}
	// Out-of-range coordinates are dropped, not clamped.
	if raw.Latitude.Set && raw.Latitude.Value >= -90 && raw.Latitude.Value <= 90 {
		lat := raw.Latitude.Value
		v.Latitude = &lat
	}
	if raw.Longitude.Set && raw.Longitude.Value >= -180 && raw.Longitude.Value <= 180 {
		lon := raw.Longitude.Value
		v.Longitude = &lon
	}
	return v
}

func normalizeTeachers(raw []extract.RawPerson) []festival.Teacher {
	out := make([]festival.Teacher, 0, len(raw))
	for _, p := range raw {
		name := cleanString(p.Name)
		if name == "" {
			continue
		}
		out = append(out, festival.Teacher{
			Name:        name,
			Specialties: cleanTagList(p.Specialties, maxTagsPerson),
		})
		if len(out) == maxPeople {
			break
		}
	}
	return out
}

func normalizeMusicians(raw []extract.RawPerson) []festival.Musician {
	out := make([]festival.Musician, 0, len(raw))
	for _, p := range raw {
		name := cleanString(p.Name)
		if name == "" {
			continue
		}
		out = append(out, festival.Musician{
			Name:   name,
			Genres: cleanTagList(p.Genres, maxTagsPerson),
		})
		if len(out) == maxPeople {
			break
		}
	}
	return out
}

func normalizePrices(raw []extract.RawPrice) []festival.Price {
	out := make([]festival.Price, 0, len(raw))
	for _, rp := range raw {
		price := festival.Price{
			Type:        festival.PriceRegular,
			Currency:    "USD",
			Description: cleanString(rp.Description),
		}
		if t := strings.ToLower(strings.TrimSpace(rp.Type)); festival.ValidPriceType(t) {
			price.Type = festival.PriceType(t)
		}
		if c := strings.ToUpper(strings.TrimSpace(rp.Currency)); festival.ValidCurrency(c) {
			price.Currency = c
		}
		if rp.Amount.Set && rp.Amount.Value > 0 {
			price.Amount = rp.Amount.Value
		}
		if d := parseDate(rp.Deadline); !d.IsZero() {
			price.Deadline = &d
		}
		out = append(out, price)
		if len(out) == maxPrices {
			break
		}
	}
	return out
}

func normalizeTags(raw []string) []string {
	return cleanTagList(raw, maxTags)
}

func cleanTagList(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(cleanString(t))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	return out
}

func cleanString(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxStringLen {
		s = string([]rune(s)[:maxStringLen])
	}
	return s
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Package festival defines the core value objects and collaborator interfaces
// shared by the scrape and import pipelines.
package festival

import (
	"strings"
	"time"
)

// FestivalData is the in-flight representation of an extracted festival.
// It is produced by the normalizer and treated as immutable afterwards: the
// validator and importer operate on copies, never on the original.
type FestivalData struct {
	Name                 string
	Description          string
	StartDate            time.Time
	EndDate              time.Time
	Timezone             string
	RegistrationDeadline *time.Time
	Website              string
	RegistrationURL      string
	Email                string
	Phone                string
	SourceURL            string
	Venue                *Venue
	Teachers             []Teacher
	Musicians            []Musician
	Prices               []Price
	Tags                 []string
}

// Clone returns a deep copy so downstream stages can normalize without
// mutating the caller's value.
func (f FestivalData) Clone() FestivalData {
	out := f
	if f.RegistrationDeadline != nil {
		d := *f.RegistrationDeadline
		out.RegistrationDeadline = &d
	}
	if f.Venue != nil {
		v := f.Venue.Clone()
		out.Venue = &v
	}
	out.Teachers = make([]Teacher, len(f.Teachers))
	for i, t := range f.Teachers {
		out.Teachers[i] = Teacher{Name: t.Name, Specialties: append([]string(nil), t.Specialties...)}
	}
	out.Musicians = make([]Musician, len(f.Musicians))
	for i, m := range f.Musicians {
		out.Musicians[i] = Musician{Name: m.Name, Genres: append([]string(nil), m.Genres...)}
	}
	out.Prices = append([]Price(nil), f.Prices...)
	for i, p := range f.Prices {
		if p.Deadline != nil {
			d := *p.Deadline
			out.Prices[i].Deadline = &d
		}
	}
	out.Tags = append([]string(nil), f.Tags...)
	return out
}

// Venue locates a festival. Identity for reuse is (name, city),
// case-insensitive.
type Venue struct {
	Name       string
	Address    string
	City       string
	State      string
	Country    string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

// Clone returns a copy with its own coordinate pointers.
func (v Venue) Clone() Venue {
	out := v
	if v.Latitude != nil {
		lat := *v.Latitude
		out.Latitude = &lat
	}
	if v.Longitude != nil {
		lon := *v.Longitude
		out.Longitude = &lon
	}
	return out
}

// Teacher identity is global by case-insensitive name; the same name resolves
// to one persisted row reused across festivals.
type Teacher struct {
	Name        string
	Specialties []string
}

// Musician identity follows the same global-by-name rule as Teacher.
type Musician struct {
	Name   string
	Genres []string
}

// PriceType enumerates the recognized ticket categories.
type PriceType string

// Recognized price types.
const (
	PriceEarlyBird PriceType = "early_bird"
	PriceRegular   PriceType = "regular"
	PriceLate      PriceType = "late"
	PriceStudent   PriceType = "student"
	PriceLocal     PriceType = "local"
	PriceVIP       PriceType = "vip"
	PriceDonation  PriceType = "donation"
)

// ValidPriceType reports whether s is one of the recognized price types.
func ValidPriceType(s string) bool {
	switch PriceType(s) {
	case PriceEarlyBird, PriceRegular, PriceLate, PriceStudent, PriceLocal, PriceVIP, PriceDonation:
		return true
	}
	return false
}

// ValidCurrency reports whether code is one of the accepted ISO currency codes.
func ValidCurrency(code string) bool {
	switch strings.ToUpper(code) {
	case "USD", "EUR", "GBP", "CAD", "AUD", "CHF", "SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "JPY", "KRW", "BRL", "MXN", "NZD":
		return true
	}
	return false
}

// Price is a ticket tier attached to one festival.
type Price struct {
	Type        PriceType
	Amount      float64
	Currency    string
	Deadline    *time.Time
	Description string
}

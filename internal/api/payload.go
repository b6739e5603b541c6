package api

import (
	"time"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// festivalPayload is the JSON wire form of a festival accepted by the import
// endpoint. Dates accept RFC 3339 or plain YYYY-MM-DD.
type festivalPayload struct {
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	StartDate            string           `json:"startDate"`
	EndDate              string           `json:"endDate"`
	Timezone             string           `json:"timezone,omitempty"`
	RegistrationDeadline string           `json:"registrationDeadline,omitempty"`
	Website              string           `json:"website,omitempty"`
	RegistrationURL      string           `json:"registrationUrl,omitempty"`
	Email                string           `json:"email,omitempty"`
	Phone                string           `json:"phone,omitempty"`
	SourceURL            string           `json:"sourceUrl,omitempty"`
	Venue                *venuePayload    `json:"venue,omitempty"`
	Teachers             []personPayload  `json:"teachers,omitempty"`
	Musicians            []personPayload  `json:"musicians,omitempty"`
	Prices               []pricePayload   `json:"prices,omitempty"`
	Tags                 []string         `json:"tags,omitempty"`
}

type venuePayload struct {
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	City       string   `json:"city"`
	State      string   `json:"state,omitempty"`
	Country    string   `json:"country"`
	PostalCode string   `json:"postalCode,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type personPayload struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

type pricePayload struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Deadline    string  `json:"deadline,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (p festivalPayload) toDomain() festival.FestivalData {
	data := festival.FestivalData{
		Name:            p.Name,
		Description:     p.Description,
		StartDate:       parsePayloadDate(p.StartDate),
		EndDate:         parsePayloadDate(p.EndDate),
		Timezone:        p.Timezone,
		Website:         p.Website,
		RegistrationURL: p.RegistrationURL,
		Email:           p.Email,
		Phone:           p.Phone,
		SourceURL:       p.SourceURL,
		Tags:            p.Tags,
	}
	if d := parsePayloadDate(p.RegistrationDeadline); !d.IsZero() {
		data.RegistrationDeadline = &d
	}
	if p.Venue != nil {
		data.Venue = &festival.Venue{
			Name:       p.Venue.Name,
			Address:    p.Venue.Address,
			City:       p.Venue.City,
			State:      p.Venue.State,
			Country:    p.Venue.Country,
			PostalCode: p.Venue.PostalCode,
			Latitude:   p.Venue.Latitude,
			Longitude:  p.Venue.Longitude,
		}
	}
	for _, t := range p.Teachers {
		data.Teachers = append(data.Teachers, festival.Teacher{Name: t.Name, Specialties: t.Specialties})
	}
	for _, m := range p.Musicians {
		data.Musicians = append(data.Musicians, festival.Musician{Name: m.Name, Genres: m.Genres})
	}
	for _, pr := range p.Prices {
		price := festival.Price{
			Type:        festival.PriceType(pr.Type),
			Amount:      pr.Amount,
			Currency:    pr.Currency,
			Description: pr.Description,
		}
		if d := parsePayloadDate(pr.Deadline); !d.IsZero() {
			price.Deadline = &d
		}
		data.Prices = append(data.Prices, price)
	}
	return data
}

func parsePayloadDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Package extract turns crawled page content into raw festival data via a
// language-model completion, guarded by a circuit breaker.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawFestival mirrors the JSON object the model is asked to emit. Fields are
// deliberately loose; the normalizer owns all coercion.
type RawFestival struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	StartDate            string      `json:"startDate"`
	EndDate              string      `json:"endDate"`
	Timezone             string      `json:"timezone"`
	RegistrationDeadline string      `json:"registrationDeadline"`
	Website              string      `json:"website"`
	RegistrationURL      string      `json:"registrationUrl"`
	Email                string      `json:"email"`
	Phone                string      `json:"phone"`
	Venue                *RawVenue   `json:"venue"`
	Teachers             []RawPerson `json:"teachers"`
	Musicians            []RawPerson `json:"musicians"`
	Prices               []RawPrice  `json:"prices"`
	Tags                 []string    `json:"tags"`
}

// RawVenue allows coordinates as numbers or strings.
type RawVenue struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Country    string  `json:"country"`
	PostalCode string  `json:"postalCode"`
	Latitude   FlexNum `json:"latitude"`
	Longitude  FlexNum `json:"longitude"`
}

// RawPerson accepts either a bare name string or an object with tag arrays.
type RawPerson struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
	Genres      []string `json:"genres"`
}

// UnmarshalJSON tolerates models emitting `"Jane Doe"` instead of an object.
func (p *RawPerson) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.Name = name
		return nil
	}
	type alias RawPerson
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = RawPerson(obj)
	return nil
}

// RawPrice keeps the amount flexible; models emit numbers or strings.
type RawPrice struct {
	Type        string  `json:"type"`
	Amount      FlexNum `json:"amount"`
	Currency    string  `json:"currency"`
	Deadline    string  `json:"deadline"`
	Description string  `json:"description"`
}

// FlexNum decodes a JSON number, numeric string, or null. Set reports whether
// a usable value was present.
type FlexNum struct {
	Value float64
	Set   bool
}

// UnmarshalJSON accepts 12.5, "12.5", "$12.50", and null.
func (n *FlexNum) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value = f
		n.Set = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Unusable value; leave unset rather than failing the whole object.
		return nil
	}
	s = strings.TrimFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.Value = f
	n.Set = true
	return nil
}

package normalize

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swingradar/festival-crawler/internal/extract"
	"github.com/swingradar/festival-crawler/internal/festival"
)

func flex(v float64) extract.FlexNum {
	return extract.FlexNum{Value: v, Set: true}
}

func TestNormalizeBasics(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{
		Name:      "  Midsummer Swing  ",
		StartDate: "2026-06-19",
		EndDate:   "2026-06-21",
		Website:   "https://midsummerswing.example.com",
	}
	data := New().Normalize(raw, "https://midsummerswing.example.com")

	assert.Equal(t, "Midsummer Swing", data.Name)
	assert.Equal(t, time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC), data.StartDate)
	assert.Equal(t, time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC), data.EndDate)
	assert.Equal(t, "https://midsummerswing.example.com", data.SourceURL)
}

func TestNormalizeMissingNameAndDates(t *testing.T) {
	t.Parallel()

	data := New().Normalize(extract.RawFestival{StartDate: "sometime in June"}, "https://x.example.com")
	assert.Equal(t, "Unknown Festival", data.Name)
	// Unparsable dates stay absent; nothing is fabricated.
	assert.True(t, data.StartDate.IsZero())
	assert.True(t, data.EndDate.IsZero())
}

func TestNormalizeEndBeforeStartCollapses(t *testing.T) {
	t.Parallel()

	data := New().Normalize(extract.RawFestival{
		Name:      "Backwards Fest",
		StartDate: "2026-08-10",
		EndDate:   "2026-08-01",
	}, "")
	assert.Equal(t, data.StartDate, data.EndDate)
}

func TestNormalizeCapsCollections(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{Name: "Big Fest"}
	for i := 0; i < 40; i++ {
		raw.Teachers = append(raw.Teachers, extract.RawPerson{Name: "Teacher " + strings.Repeat("x", i+1)})
	}
	for i := 0; i < 80; i++ {
		raw.Tags = append(raw.Tags, "tag-"+strings.Repeat("y", i+1))
	}
	data := New().Normalize(raw, "")
	assert.Len(t, data.Teachers, 20)
	assert.Len(t, data.Tags, 50)
}

func TestNormalizeVenueCoordinates(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{
		Name: "Coord Fest",
		Venue: &extract.RawVenue{
			Name:      "Town Hall",
			City:      "Lund",
			Country:   "Sweden",
			Latitude:  flex(155.0), // invalid, dropped not clamped
			Longitude: flex(13.19),
		},
	}
	data := New().Normalize(raw, "")
	require.NotNil(t, data.Venue)
	assert.Nil(t, data.Venue.Latitude)
	require.NotNil(t, data.Venue.Longitude)
	assert.InDelta(t, 13.19, *data.Venue.Longitude, 0.001)
}

func TestNormalizePriceDefaults(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{
		Name: "Price Fest",
		Prices: []extract.RawPrice{
			{Type: "super_vip", Amount: flex(99), Currency: "XYZ"},
			{Type: "early_bird", Amount: extract.FlexNum{Value: -5, Set: true}, Currency: "eur"},
		},
	}
	data := New().Normalize(raw, "")
	require.Len(t, data.Prices, 2)

	assert.Equal(t, festival.PriceRegular, data.Prices[0].Type)
	assert.Equal(t, "USD", data.Prices[0].Currency)
	assert.InDelta(t, 99, data.Prices[0].Amount, 0.001)

	assert.Equal(t, festival.PriceEarlyBird, data.Prices[1].Type)
	assert.Equal(t, "EUR", data.Prices[1].Currency)
	assert.Zero(t, data.Prices[1].Amount)
}

func TestNormalizeLowercasesTags(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{
		Name:     "Tag Fest",
		Tags:     []string{"Lindy Hop", "BALBOA", "lindy hop"},
		Teachers: []extract.RawPerson{{Name: "A Teacher", Specialties: []string{"Lindy Hop"}}},
	}
	data := New().Normalize(raw, "")
	assert.Equal(t, []string{"lindy hop", "balboa"}, data.Tags)
	assert.Equal(t, []string{"lindy hop"}, data.Teachers[0].Specialties)
}

func TestNormalizeTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	raw := extract.RawFestival{
		Name:        "Herräng Dance Camp",
		Description: strings.Repeat("a", 999) + "äöü",
	}
	data := New().Normalize(raw, "https://herrang.example.com")

	require.True(t, utf8.ValidString(data.Description))
	assert.Equal(t, 1000, utf8.RuneCountInString(data.Description))
	assert.Equal(t, 'ä', []rune(data.Description)[999])
}

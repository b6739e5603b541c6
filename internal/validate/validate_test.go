package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swingradar/festival-crawler/internal/festival"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func validData() festival.FestivalData {
	return festival.FestivalData{
		Name:      "Stockholm Swing Week",
		StartDate: time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC),
		Website:   "https://swingweek.example.se",
		SourceURL: "https://swingweek.example.se",
		Venue: &festival.Venue{
			Name:    "Chicago Dansstudio",
			City:    "Stockholm",
			Country: "Sweden",
		},
		Teachers: []festival.Teacher{{Name: "Frida", Specialties: []string{"lindy hop"}}},
		Prices:   []festival.Price{{Type: festival.PriceRegular, Amount: 180, Currency: "SEK"}},
		Tags:     []string{"lindy hop"},
	}
}

func TestValidateCleanData(t *testing.T) {
	t.Parallel()

	r := NewWithClock(fixedClock()).Validate(validData())
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors())
	assert.Greater(t, r.Confidence, 0.8)
}

func TestValidateMissingRequiredFields(t *testing.T) {
	t.Parallel()

	r := NewWithClock(fixedClock()).Validate(festival.FestivalData{})
	assert.False(t, r.IsValid)

	codes := map[string]bool{}
	for _, is := range r.Issues {
		if is.Code == CodeMissingField && is.Severity == SeverityError {
			codes[is.Field] = true
		}
	}
	assert.True(t, codes["name"])
	assert.True(t, codes["startDate"])
	assert.True(t, codes["endDate"])
}

func TestValidatePriceDeadlineAfterStart(t *testing.T) {
	t.Parallel()

	data := validData()
	late := data.StartDate.AddDate(0, 0, 2)
	data.Prices[0].Deadline = &late

	r := NewWithClock(fixedClock()).Validate(data)
	require.False(t, r.IsValid)

	var found *Issue
	for i := range r.Issues {
		if r.Issues[i].Code == CodeInvalidDeadline {
			found = &r.Issues[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, SeverityError, found.Severity)
	assert.Equal(t, "prices[0].deadline", found.Field)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	t.Parallel()

	data := validData()
	data.StartDate = testNow.AddDate(-2, 0, 0)
	data.EndDate = data.StartDate.AddDate(0, 0, 3)
	data.Teachers = []festival.Teacher{{Name: "Someone"}}

	r := NewWithClock(fixedClock()).Validate(data)
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors())
	assert.NotEmpty(t, r.Warnings())

	codes := map[string]int{}
	for _, is := range r.Issues {
		codes[is.Code]++
	}
	assert.Equal(t, 1, codes[CodeStaleEvent])
	assert.Equal(t, 1, codes[CodeEmptyCollection])
}

func TestValidateDurationOver30Days(t *testing.T) {
	t.Parallel()

	data := validData()
	data.EndDate = data.StartDate.AddDate(0, 0, 45)

	r := NewWithClock(fixedClock()).Validate(data)
	assert.True(t, r.IsValid)

	var hit bool
	for _, is := range r.Issues {
		hit = hit || is.Code == CodeExcessiveLength
	}
	assert.True(t, hit)
}

func TestValidateNegativePriceAmount(t *testing.T) {
	t.Parallel()

	data := validData()
	data.Prices[0].Amount = 0

	r := NewWithClock(fixedClock()).Validate(data)
	assert.False(t, r.IsValid)
}

func TestValidateDonationMayBeFree(t *testing.T) {
	t.Parallel()

	data := validData()
	data.Prices = []festival.Price{{Type: festival.PriceDonation, Amount: 0, Currency: "SEK"}}

	r := NewWithClock(fixedClock()).Validate(data)
	assert.True(t, r.IsValid)
}

func TestValidateSuspectName(t *testing.T) {
	t.Parallel()

	data := validData()
	data.Name = "Test Festival"

	r := NewWithClock(fixedClock()).Validate(data)
	assert.True(t, r.IsValid)

	var hit bool
	for _, is := range r.Issues {
		hit = hit || is.Code == CodeSuspectName
	}
	assert.True(t, hit)
}

func TestValidateNormalizedCopyLowercases(t *testing.T) {
	t.Parallel()

	data := validData()
	data.Tags = []string{" Lindy Hop "}
	data.Teachers[0].Specialties = []string{"BALBOA"}

	r := NewWithClock(fixedClock()).Validate(data)
	assert.Equal(t, []string{"lindy hop"}, r.Normalized.Tags)
	assert.Equal(t, []string{"balboa"}, r.Normalized.Teachers[0].Specialties)
	// Input untouched.
	assert.Equal(t, []string{" Lindy Hop "}, data.Tags)
}

func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	assert.False(t, SeverityWarning.Blocks())
	assert.True(t, SeverityError.Blocks())
	assert.True(t, SeverityCritical.Blocks())
	assert.Equal(t, "error", SeverityError.String())
}

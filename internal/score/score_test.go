package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swingradar/festival-crawler/internal/festival"
)

func TestScoreRequiredFieldsOnly(t *testing.T) {
	t.Parallel()

	data := festival.FestivalData{
		Name:      "Herräng Dance Camp",
		StartDate: time.Date(2026, 6, 27, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 18, 0, 0, 0, 0, time.UTC),
		Venue: &festival.Venue{
			Name:    "Folkets Hus",
			City:    "Herräng",
			Country: "Sweden",
		},
	}

	// 0.85 in field weights plus the valid-range bonus, over a 1.10 maximum.
	assert.InDelta(t, 0.818, New().Score(data), 0.001)
}

func TestScoreEmptyData(t *testing.T) {
	t.Parallel()
	assert.Zero(t, New().Score(festival.FestivalData{}))
}

func TestScoreFullyPopulated(t *testing.T) {
	t.Parallel()

	data := festival.FestivalData{
		Name:            "Snowball",
		Description:     "The classic winter exchange.",
		StartDate:       time.Date(2026, 12, 27, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Website:         "https://snowball.example.se",
		RegistrationURL: "https://snowball.example.se/register",
		Venue:           &festival.Venue{Name: "Nalen", City: "Stockholm", Country: "Sweden"},
		Teachers:        []festival.Teacher{{Name: "A Teacher"}},
		Musicians:       []festival.Musician{{Name: "A Band"}},
		Prices:          []festival.Price{{Type: festival.PriceRegular, Amount: 200, Currency: "SEK"}},
		Tags:            []string{"lindy hop"},
	}

	// 1.10 in weights plus 0.07 in bonuses clamps to 1.0.
	assert.InDelta(t, 1.0, New().Score(data), 0.0001)
}

func TestScoreInvertedDateRangePenalized(t *testing.T) {
	t.Parallel()

	valid := festival.FestivalData{
		Name:      "Order Fest",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	inverted := valid
	inverted.StartDate, inverted.EndDate = valid.EndDate, valid.StartDate

	// Same fields present, 0.15 apart: +0.05 bonus versus -0.10 penalty.
	assert.InDelta(t, 0.15/1.10, New().Score(valid)-New().Score(inverted), 0.0001)
}

func TestScoreWebsiteBonusRequiresHTTPURL(t *testing.T) {
	t.Parallel()

	withURL := festival.FestivalData{Name: "Web Fest", Website: "https://webfest.example.com"}
	withJunk := festival.FestivalData{Name: "Web Fest", Website: "not a url"}

	assert.InDelta(t, bonusParseableWebsite/maxAchievable,
		New().Score(withURL)-New().Score(withJunk), 0.0001)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/festival"
	"github.com/swingradar/festival-crawler/internal/geo"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

func newTestImporter(t *testing.T) (*Importer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return NewImporter(store, nil, &seqIDs{}, zap.NewNop()), mock
}

func importData() festival.FestivalData {
	return festival.FestivalData{
		Name:      "Lund Lindy Exchange",
		StartDate: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC),
		SourceURL: "https://lindy.example.se",
		Venue: &festival.Venue{
			Name:    "Folkparken",
			City:    "Lund",
			Country: "Sweden",
		},
		Teachers: []festival.Teacher{
			{Name: "Frida", Specialties: []string{"lindy hop"}},
			{Name: "Oskar", Specialties: []string{"balboa"}},
		},
		Musicians: []festival.Musician{
			{Name: "Hot Five", Genres: []string{"swing"}},
		},
		Prices: []festival.Price{
			{Type: festival.PriceRegular, Amount: 120, Currency: "SEK"},
		},
		Tags: []string{"lindy hop"},
	}
}

func noCollision(mock pgxmock.PgxPoolIface, table, slug string) {
	mock.ExpectQuery("SELECT 1 FROM " + table + " WHERE slug").
		WithArgs(slug).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
}

func TestImportCreatesFullGraph(t *testing.T) {
	t.Parallel()

	im, mock := newTestImporter(t)
	data := importData()

	mock.ExpectBegin()

	// Venue: no (name, city) match, so a new row.
	mock.ExpectQuery("SELECT id FROM venues WHERE").
		WithArgs("Folkparken", "Lund").
		WillReturnError(pgx.ErrNoRows)
	noCollision(mock, "venues", "folkparken")
	mock.ExpectExec("INSERT INTO venues").
		WithArgs("id-1", "Folkparken", "folkparken", nil, "Lund", nil, "Sweden", nil,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Event is always new.
	noCollision(mock, "events", "lund-lindy-exchange")
	mock.ExpectExec("INSERT INTO events").
		WithArgs("id-2", "Lund Lindy Exchange", "lund-lindy-exchange", nil,
			data.StartDate, data.EndDate, pgxmock.AnyArg(), pgxmock.AnyArg(), nil, nil, data.SourceURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Teachers: Frida exists, Oskar is created.
	mock.ExpectQuery("FROM teachers WHERE lower").
		WithArgs([]string{"frida", "oskar"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "lower"}).AddRow("t-frida", "frida"))
	noCollision(mock, "teachers", "oskar")
	mock.ExpectExec("INSERT INTO teachers").
		WithArgs("id-3", "Oskar", "oskar").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Frida is reused: her specialties are replaced wholesale.
	mock.ExpectExec("DELETE FROM teacher_specialties").
		WithArgs("t-frida").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO teacher_specialties").
		WithArgs("t-frida", "lindy hop").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO event_teachers").
		WithArgs("id-2", "t-frida").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Oskar is new: direct insert, no delete.
	mock.ExpectExec("INSERT INTO teacher_specialties").
		WithArgs("id-3", "balboa").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO event_teachers").
		WithArgs("id-2", "id-3").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Musicians: Hot Five is created.
	mock.ExpectQuery("FROM musicians WHERE lower").
		WithArgs([]string{"hot five"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "lower"}))
	noCollision(mock, "musicians", "hot-five")
	mock.ExpectExec("INSERT INTO musicians").
		WithArgs("id-4", "Hot Five", "hot-five").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO musician_genres").
		WithArgs("id-4", "swing").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO event_musicians").
		WithArgs("id-2", "id-4").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec("INSERT INTO event_prices").
		WithArgs("id-2", "regular", 120.0, "SEK", pgxmock.AnyArg(), nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO event_tags").
		WithArgs("id-2", "lindy hop").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	eventID, stats, err := im.Import(context.Background(), data, festival.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "id-2", eventID)
	assert.Equal(t, festival.ImportStats{
		VenuesCreated:    1,
		TeachersCreated:  1,
		MusiciansCreated: 1,
		PricesCreated:    1,
		TagsCreated:      1,
	}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportReusesVenue(t *testing.T) {
	t.Parallel()

	im, mock := newTestImporter(t)
	data := importData()
	data.Teachers = nil
	data.Musicians = nil
	data.Prices = nil
	data.Tags = nil

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM venues WHERE").
		WithArgs("Folkparken", "Lund").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("venue-77"))
	noCollision(mock, "events", "lund-lindy-exchange")
	mock.ExpectExec("INSERT INTO events").
		WithArgs("id-1", "Lund Lindy Exchange", "lund-lindy-exchange", nil,
			data.StartDate, data.EndDate, pgxmock.AnyArg(), pgxmock.AnyArg(), nil, nil, data.SourceURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, stats, err := im.Import(context.Background(), data, festival.ImportOptions{})
	require.NoError(t, err)
	assert.Zero(t, stats.VenuesCreated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	im, mock := newTestImporter(t)
	data := importData()
	data.Venue = nil
	data.Teachers = nil
	data.Musicians = nil
	data.Tags = nil

	mock.ExpectBegin()
	noCollision(mock, "events", "lund-lindy-exchange")
	mock.ExpectExec("INSERT INTO events").
		WithArgs("id-1", "Lund Lindy Exchange", "lund-lindy-exchange", nil,
			data.StartDate, data.EndDate, pgxmock.AnyArg(), pgxmock.AnyArg(), nil, nil, data.SourceURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO event_prices").
		WithArgs("id-1", "regular", 120.0, "SEK", pgxmock.AnyArg(), nil).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := im.Import(context.Background(), data, festival.ImportOptions{})
	require.Error(t, err)
	assert.Equal(t, festival.CodeDatabase, festival.CodeOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

type fixedGeocoder struct{ called bool }

func (f *fixedGeocoder) GeocodeAddress(context.Context, geo.Query) (geo.Result, error) {
	f.called = true
	return geo.Result{Latitude: 55.70, Longitude: 13.19, Confidence: 0.95}, nil
}

func (f *fixedGeocoder) ReverseGeocode(context.Context, float64, float64) (geo.Address, error) {
	return geo.Address{}, nil
}

func TestImportGeocodesNewVenueOnRequest(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	gc := &fixedGeocoder{}
	im := NewImporter(store, gc, &seqIDs{}, zap.NewNop())

	data := importData()
	data.Teachers = nil
	data.Musicians = nil
	data.Prices = nil
	data.Tags = nil

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM venues WHERE").
		WithArgs("Folkparken", "Lund").
		WillReturnError(pgx.ErrNoRows)
	noCollision(mock, "venues", "folkparken")
	mock.ExpectExec("INSERT INTO venues").
		WithArgs("id-1", "Folkparken", "folkparken", nil, "Lund", nil, "Sweden", nil,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	noCollision(mock, "events", "lund-lindy-exchange")
	mock.ExpectExec("INSERT INTO events").
		WithArgs("id-2", "Lund Lindy Exchange", "lund-lindy-exchange", nil,
			data.StartDate, data.EndDate, pgxmock.AnyArg(), pgxmock.AnyArg(), nil, nil, data.SourceURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, _, err = im.Import(context.Background(), data, festival.ImportOptions{GeocodeVenue: true})
	require.NoError(t, err)
	assert.True(t, gc.called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportTreatsHalfCoordinatePairAsAbsent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	gc := &fixedGeocoder{}
	im := NewImporter(store, gc, &seqIDs{}, zap.NewNop())

	data := importData()
	data.Teachers = nil
	data.Musicians = nil
	data.Prices = nil
	data.Tags = nil
	lat := 55.70
	data.Venue.Latitude = &lat
	data.Venue.Longitude = nil

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM venues WHERE").
		WithArgs("Folkparken", "Lund").
		WillReturnError(pgx.ErrNoRows)
	noCollision(mock, "venues", "folkparken")
	mock.ExpectExec("INSERT INTO venues").
		WithArgs("id-1", "Folkparken", "folkparken", nil, "Lund", nil, "Sweden", nil,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	noCollision(mock, "events", "lund-lindy-exchange")
	mock.ExpectExec("INSERT INTO events").
		WithArgs("id-2", "Lund Lindy Exchange", "lund-lindy-exchange", nil,
			data.StartDate, data.EndDate, pgxmock.AnyArg(), pgxmock.AnyArg(), nil, nil, data.SourceURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, _, err = im.Import(context.Background(), data, festival.ImportOptions{GeocodeVenue: true})
	require.NoError(t, err)
	assert.True(t, gc.called, "a dangling latitude must not suppress geocoding")
	require.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/festival"
	"github.com/swingradar/festival-crawler/internal/geo"
)

// Importer persists one validated FestivalData as a multi-entity graph
// inside a single transaction. Venues and people are deduplicated; the event
// itself is always a new row.
type Importer struct {
	db       DB
	geocoder geo.Geocoder
	ids      festival.IDGenerator
	logger   *zap.Logger
}

// NewImporter wires the importer. geocoder may be nil, in which case venue
// geocoding is skipped regardless of the import options.
func NewImporter(store *Store, geocoder geo.Geocoder, ids festival.IDGenerator, logger *zap.Logger) *Importer {
	return &Importer{db: store.Pool(), geocoder: geocoder, ids: ids, logger: logger}
}

// Import writes data and returns the new event id plus per-entity creation
// counts. Any failure rolls back the whole transaction and surfaces as a
// DATABASE-coded error.
func (im *Importer) Import(ctx context.Context, data festival.FestivalData, opts festival.ImportOptions) (string, festival.ImportStats, error) {
	var stats festival.ImportStats

	tx, err := im.db.Begin(ctx)
	if err != nil {
		return "", stats, festival.E(festival.CodeDatabase, "failed to start import transaction", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			im.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	slugs := newSlugReserver(tx)

	venueID, err := im.resolveVenue(ctx, tx, slugs, data.Venue, opts, &stats)
	if err != nil {
		return "", festival.ImportStats{}, dbErr("venue resolution failed", err)
	}

	eventID, err := im.createEvent(ctx, tx, slugs, data, venueID)
	if err != nil {
		return "", festival.ImportStats{}, dbErr("event creation failed", err)
	}

	if err := im.importTeachers(ctx, tx, slugs, eventID, data.Teachers, &stats); err != nil {
		return "", festival.ImportStats{}, dbErr("teacher import failed", err)
	}
	if err := im.importMusicians(ctx, tx, slugs, eventID, data.Musicians, &stats); err != nil {
		return "", festival.ImportStats{}, dbErr("musician import failed", err)
	}
	if err := im.importPrices(ctx, tx, eventID, data.Prices, &stats); err != nil {
		return "", festival.ImportStats{}, dbErr("price import failed", err)
	}
	if err := im.importTags(ctx, tx, eventID, data.Tags, &stats); err != nil {
		return "", festival.ImportStats{}, dbErr("tag import failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", festival.ImportStats{}, festival.E(festival.CodeDatabase, "failed to commit import", err)
	}
	committed = true

	im.logger.Info("festival imported",
		zap.String("event_id", eventID),
		zap.Int("teachers_created", stats.TeachersCreated),
		zap.Int("musicians_created", stats.MusiciansCreated))
	return eventID, stats, nil
}

func dbErr(msg string, err error) error {
	var fe *festival.Error
	if errors.As(err, &fe) {
		return err
	}
	return festival.E(festival.CodeDatabase, msg, err)
}

// resolveVenue reuses an existing venue matched on (name, city)
// case-insensitively, or creates a new one, geocoding it first when requested
// and coordinates are absent.
func (im *Importer) resolveVenue(ctx context.Context, tx pgx.Tx, slugs *slugReserver, v *festival.Venue, opts festival.ImportOptions, stats *festival.ImportStats) (*string, error) {
	if v == nil {
		return nil, nil
	}

	var existingID string
	err := tx.QueryRow(ctx,
		`SELECT id FROM venues WHERE lower(name) = lower($1) AND lower(city) = lower($2)`,
		v.Name, v.City,
	).Scan(&existingID)
	switch {
	case err == nil:
		return &existingID, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("lookup venue: %w", err)
	}

	lat, lon := v.Latitude, v.Longitude
	if lat == nil || lon == nil {
		// A half pair (one coordinate dropped at normalization) is useless;
		// treat it as absent rather than persisting a dangling coordinate.
		lat, lon = nil, nil
	}
	if opts.GeocodeVenue && im.geocoder != nil && lat == nil && (v.Address != "" || v.City != "") {
		res, gErr := im.geocoder.GeocodeAddress(ctx, geo.QueryForVenue(v))
		if gErr != nil {
			// Geocoding is best-effort; a failure never aborts the import.
			im.logger.Warn("venue geocoding failed", zap.String("city", v.City), zap.Error(gErr))
		} else {
			lat, lon = &res.Latitude, &res.Longitude
		}
	}

	id, err := im.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate venue id: %w", err)
	}
	slug, err := slugs.unique(ctx, "venues", v.Name, "venue")
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO venues (id, name, slug, address, city, state, country, postal_code, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, v.Name, slug, nullable(v.Address), v.City, nullable(v.State), v.Country,
		nullable(v.PostalCode), lat, lon)
	if err != nil {
		return nil, fmt.Errorf("insert venue: %w", err)
	}
	stats.VenuesCreated++
	return &id, nil
}

// createEvent always inserts a fresh row; similar existing events are never
// merged.
func (im *Importer) createEvent(ctx context.Context, tx pgx.Tx, slugs *slugReserver, data festival.FestivalData, venueID *string) (string, error) {
	id, err := im.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}
	slug, err := slugs.unique(ctx, "events", data.Name, "festival")
	if err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, name, slug, description, start_date, end_date, registration_deadline,
		                     venue_id, website, registration_url, source_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, data.Name, slug, nullable(data.Description), data.StartDate, data.EndDate,
		data.RegistrationDeadline, venueID, nullable(data.Website),
		nullable(data.RegistrationURL), nullable(data.SourceURL))
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// personRef links a supplied person to its persisted row.
type personRef struct {
	id      string
	reused  bool
	tagList []string
}

func (im *Importer) importTeachers(ctx context.Context, tx pgx.Tx, slugs *slugReserver, eventID string, teachers []festival.Teacher, stats *festival.ImportStats) error {
	if len(teachers) == 0 {
		return nil
	}
	names := make([]string, len(teachers))
	lists := make([][]string, len(teachers))
	for i, t := range teachers {
		names[i] = t.Name
		lists[i] = t.Specialties
	}

	refs, created, err := im.resolvePeople(ctx, tx, slugs, "teachers", names, lists)
	if err != nil {
		return err
	}
	stats.TeachersCreated += created

	for _, ref := range refs {
		if err := replaceTagRows(ctx, tx, "teacher_specialties", "teacher_id", "specialty", ref.id, ref.tagList, ref.reused); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO event_teachers (event_id, teacher_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			eventID, ref.id); err != nil {
			return fmt.Errorf("link teacher: %w", err)
		}
	}
	return nil
}

func (im *Importer) importMusicians(ctx context.Context, tx pgx.Tx, slugs *slugReserver, eventID string, musicians []festival.Musician, stats *festival.ImportStats) error {
	if len(musicians) == 0 {
		return nil
	}
	names := make([]string, len(musicians))
	lists := make([][]string, len(musicians))
	for i, m := range musicians {
		names[i] = m.Name
		lists[i] = m.Genres
	}

	refs, created, err := im.resolvePeople(ctx, tx, slugs, "musicians", names, lists)
	if err != nil {
		return err
	}
	stats.MusiciansCreated += created

	for _, ref := range refs {
		if err := replaceTagRows(ctx, tx, "musician_genres", "musician_id", "genre", ref.id, ref.tagList, ref.reused); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO event_musicians (event_id, musician_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			eventID, ref.id); err != nil {
			return fmt.Errorf("link musician: %w", err)
		}
	}
	return nil
}

// resolvePeople looks up all names in one query, reuses matches, and creates
// the rest. Identity is the case-insensitive name, global across festivals.
func (im *Importer) resolvePeople(ctx context.Context, tx pgx.Tx, slugs *slugReserver, table string, names []string, lists [][]string) ([]personRef, int, error) {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}

	query := fmt.Sprintf(`SELECT id, lower(name) FROM %s WHERE lower(name) = ANY($1)`, table)
	rows, err := tx.Query(ctx, query, lowered)
	if err != nil {
		return nil, 0, fmt.Errorf("lookup %s: %w", table, err)
	}
	existing := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan %s row: %w", table, err)
		}
		existing[name] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	refs := make([]personRef, 0, len(names))
	created := 0
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		key := lowered[i]
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if id, ok := existing[key]; ok {
			refs = append(refs, personRef{id: id, reused: true, tagList: lists[i]})
			continue
		}

		id, err := im.ids.NewID()
		if err != nil {
			return nil, 0, fmt.Errorf("generate %s id: %w", table, err)
		}
		slug, err := slugs.unique(ctx, table, name, strings.TrimSuffix(table, "s"))
		if err != nil {
			return nil, 0, err
		}
		insert := fmt.Sprintf(`INSERT INTO %s (id, name, slug) VALUES ($1, $2, $3)`, table)
		if _, err := tx.Exec(ctx, insert, id, name, slug); err != nil {
			return nil, 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		created++
		refs = append(refs, personRef{id: id, tagList: lists[i]})
	}
	return refs, created, nil
}

// replaceTagRows writes a person's specialty/genre rows. For a reused entity
// the previous rows are replaced wholesale, since an earlier festival may
// have recorded a different set.
func replaceTagRows(ctx context.Context, tx pgx.Tx, table, fkColumn, valueColumn, ownerID string, values []string, reused bool) error {
	if reused {
		del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, fkColumn)
		if _, err := tx.Exec(ctx, del, ownerID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		table, fkColumn, valueColumn)
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, err := tx.Exec(ctx, insert, ownerID, v); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

func (im *Importer) importPrices(ctx context.Context, tx pgx.Tx, eventID string, prices []festival.Price, stats *festival.ImportStats) error {
	for _, p := range prices {
		tag, err := tx.Exec(ctx,
			`INSERT INTO event_prices (event_id, type, amount, currency, deadline, description)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			eventID, string(p.Type), p.Amount, p.Currency, p.Deadline, nullable(p.Description))
		if err != nil {
			return fmt.Errorf("insert price: %w", err)
		}
		stats.PricesCreated += int(tag.RowsAffected())
	}
	return nil
}

func (im *Importer) importTags(ctx context.Context, tx pgx.Tx, eventID string, tags []string, stats *festival.ImportStats) error {
	for _, t := range tags {
		tag, err := tx.Exec(ctx,
			`INSERT INTO event_tags (event_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			eventID, strings.ToLower(t))
		if err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
		stats.TagsCreated += int(tag.RowsAffected())
	}
	return nil
}

// nullable maps empty strings to NULL so optional text columns stay clean.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

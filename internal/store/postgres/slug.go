package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Slugify derives a URL-safe identifier from a name: lower-cased, with runs
// of non-alphanumeric characters collapsed to single dashes. An empty result
// falls back to the supplied default.
func Slugify(name, fallback string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fallback
	}
	return slug
}

// slugReserver hands out slugs unique against both the persisted table and
// the slugs already reserved within the current transaction, so one import
// batch cannot collide with itself.
type slugReserver struct {
	tx       pgx.Tx
	reserved map[string]map[string]struct{} // table -> slug set
}

func newSlugReserver(tx pgx.Tx) *slugReserver {
	return &slugReserver{tx: tx, reserved: make(map[string]map[string]struct{})}
}

// unique returns the base slug or the first `base-2`, `base-3`, ... variant
// not yet taken in the given table.
func (r *slugReserver) unique(ctx context.Context, table, name, fallback string) (string, error) {
	base := Slugify(name, fallback)
	if r.reserved[table] == nil {
		r.reserved[table] = make(map[string]struct{})
	}

	candidate := base
	for n := 2; ; n++ {
		if _, taken := r.reserved[table][candidate]; !taken {
			exists, err := r.slugExists(ctx, table, candidate)
			if err != nil {
				return "", err
			}
			if !exists {
				r.reserved[table][candidate] = struct{}{}
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (r *slugReserver) slugExists(ctx context.Context, table, slug string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1)`, table)
	if err := r.tx.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe slug %q in %s: %w", slug, table, err)
	}
	return exists, nil
}

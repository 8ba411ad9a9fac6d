// Package schematest provides catalog fixtures for pgxmock-backed tests of
// capability-aware stores.
package schematest

import (
	"sort"
	"strings"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/sells-group/venue-registry/internal/schema"
)

// Full returns the column listing produced by a fully migrated database
// without PostGIS.
func Full() map[string][]string {
	return map[string][]string{
		schema.TableSubmissions: {
			"id", "kind", "status", "payload", "linked_place_id", "created_at", "updated_at",
			"reviewed_by", "reviewed_at", "review_note", "reject_reason",
		},
		schema.TablePlaces: {
			"id", "name", "country", "city", "address", "lat", "lng", "category",
			"verification", "about", "created_at", "updated_at", "hours", "payment_note",
		},
		schema.TableVerifications: {"place_id", "level", "source_submission_id", "updated_at"},
		schema.TablePayments: {
			"id", "place_id", "asset", "network", "label", "preferred", "created_at", "method",
		},
		schema.TableSubmissionMedia: {
			"id", "submission_id", "kind", "key", "content_type", "size", "created_at",
		},
		schema.TablePlaceMedia: {"place_id", "media_id", "key", "position", "created_at"},
		schema.TableHistory:    {"id", "submission_id", "actor", "action", "place_id", "meta", "created_at"},
	}
}

// Legacy returns the listing of a database that only ran the first
// migrations: no review columns, no place details, no payment method, and a
// status column on verifications.
func Legacy() map[string][]string {
	cols := Without(Full(),
		"submissions.reviewed_by", "submissions.reviewed_at", "submissions.review_note",
		"submissions.reject_reason", "places.hours", "places.payment_note",
		"payment_accepts.method", "verifications.level",
	)
	cols[schema.TableVerifications] = append(cols[schema.TableVerifications], "status")
	return cols
}

// Without copies cols dropping each "table" or "table.column" named.
func Without(cols map[string][]string, drop ...string) map[string][]string {
	out := make(map[string][]string, len(cols))
	for t, c := range cols {
		out[t] = append([]string(nil), c...)
	}
	for _, d := range drop {
		table, column, ok := strings.Cut(d, ".")
		if !ok {
			delete(out, table)
			continue
		}
		kept := out[table][:0]
		for _, c := range out[table] {
			if c != column {
				kept = append(kept, c)
			}
		}
		out[table] = kept
	}
	return out
}

// With copies cols adding "table.column" entries.
func With(cols map[string][]string, add ...string) map[string][]string {
	out := Without(cols)
	for _, a := range add {
		table, column, _ := strings.Cut(a, ".")
		out[table] = append(out[table], column)
	}
	return out
}

// Capability negotiates cols without a database.
func Capability(cols map[string][]string) schema.Capability {
	c, err := schema.FromColumns(cols)
	if err != nil {
		panic(err)
	}
	return c
}

// Rows renders cols as the catalog query result.
func Rows(cols map[string][]string) *pgxmock.Rows {
	tables := make([]string, 0, len(cols))
	for t := range cols {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	rows := pgxmock.NewRows([]string{"table_name", "column_name"})
	for _, t := range tables {
		for _, c := range cols[t] {
			rows.AddRow(t, c)
		}
	}
	return rows
}

// ExpectNegotiate queues the catalog query on mock.
func ExpectNegotiate(mock pgxmock.PgxPoolIface, cols map[string][]string) {
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(Rows(cols))
}

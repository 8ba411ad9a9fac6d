// Package schema negotiates which optional tables and columns the connected
// database actually has, so stores can shape their statements to fit.
package schema

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
)

// Table names the engine reads and writes.
const (
	TableSubmissions     = "submissions"
	TablePlaces          = "places"
	TableVerifications   = "verifications"
	TablePayments        = "payment_accepts"
	TableSubmissionMedia = "submission_media"
	TablePlaceMedia      = "place_media"
	TableHistory         = "submission_history"
)

// Tables is every table negotiation inspects.
var Tables = []string{
	TablePlaceMedia,
	TablePlaces,
	TablePayments,
	TableHistory,
	TableSubmissionMedia,
	TableSubmissions,
	TableVerifications,
}

// ErrRequiredTable is returned when submissions or places is absent.
var ErrRequiredTable = eris.New("schema: required table missing")

// Capability describes the optional schema elements present in the database.
// It is computed once per unit of work and passed to every statement builder.
type Capability struct {
	// VerificationColumn is "level", the legacy "status", or empty when the
	// verifications table is unusable.
	VerificationColumn string

	Payments         bool
	PaymentMethod    bool
	PaymentPreferred bool
	SubmissionMedia  bool
	PlaceMedia       bool
	History          bool

	PlaceHours       bool
	PlacePaymentNote bool
	PlaceGeom        bool

	// ReviewColumns is set when reviewed_by, reviewed_at and review_note all exist.
	ReviewColumns bool
	RejectReason  bool
}

// Verifications reports whether verification rows can be written.
func (c Capability) Verifications() bool { return c.VerificationColumn != "" }

// PaymentConflictKeys returns the unique key payment upserts resolve on.
func (c Capability) PaymentConflictKeys() []string {
	if c.PaymentMethod {
		return []string{"place_id", "label", "method"}
	}
	return []string{"place_id", "label"}
}

// String renders the present optional elements for logging.
func (c Capability) String() string {
	var on []string
	add := func(name string, ok bool) {
		if ok {
			on = append(on, name)
		}
	}
	if c.VerificationColumn != "" {
		on = append(on, "verifications."+c.VerificationColumn)
	}
	add("payment_accepts", c.Payments)
	add("payment_accepts.method", c.PaymentMethod)
	add("payment_accepts.preferred", c.PaymentPreferred)
	add("submission_media", c.SubmissionMedia)
	add("place_media", c.PlaceMedia)
	add("submission_history", c.History)
	add("places.hours", c.PlaceHours)
	add("places.payment_note", c.PlacePaymentNote)
	add("places.geom", c.PlaceGeom)
	add("submissions.review", c.ReviewColumns)
	add("submissions.reject_reason", c.RejectReason)
	return strings.Join(on, ",")
}

// FromColumns builds a Capability from a table → columns listing.
func FromColumns(cols map[string][]string) (Capability, error) {
	has := make(map[string]map[string]bool, len(cols))
	for table, names := range cols {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		has[table] = set
	}

	var missing []string
	for _, t := range []string{TableSubmissions, TablePlaces} {
		if len(has[t]) == 0 {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Capability{}, model.Incompatible(eris.Wrapf(ErrRequiredTable, "schema: %s", strings.Join(missing, ", ")),
			"database is missing required tables")
	}

	col := func(table, name string) bool { return has[table][name] }
	table := func(name string) bool { return len(has[name]) > 0 }

	c := Capability{
		Payments:         table(TablePayments),
		PaymentMethod:    col(TablePayments, "method"),
		PaymentPreferred: col(TablePayments, "preferred"),
		SubmissionMedia:  table(TableSubmissionMedia),
		PlaceMedia:       table(TablePlaceMedia),
		History:          table(TableHistory),
		PlaceHours:       col(TablePlaces, "hours"),
		PlacePaymentNote: col(TablePlaces, "payment_note"),
		PlaceGeom:        col(TablePlaces, "geom"),
		ReviewColumns: col(TableSubmissions, "reviewed_by") &&
			col(TableSubmissions, "reviewed_at") &&
			col(TableSubmissions, "review_note"),
		RejectReason: col(TableSubmissions, "reject_reason"),
	}
	switch {
	case col(TableVerifications, "level"):
		c.VerificationColumn = "level"
	case col(TableVerifications, "status"):
		c.VerificationColumn = "status"
	}
	return c, nil
}

const negotiateSQL = `SELECT table_name, column_name
	FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name = ANY($1)
	ORDER BY table_name, ordinal_position`

// Negotiate inspects the catalog through q. Pass the transaction when the
// result must describe the same snapshot the caller is about to write to.
func Negotiate(ctx context.Context, q db.Querier) (Capability, error) {
	rows, err := q.Query(ctx, negotiateSQL, Tables)
	if err != nil {
		return Capability{}, eris.Wrap(err, "schema: query columns")
	}
	defer rows.Close()

	cols := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return Capability{}, eris.Wrap(err, "schema: scan column")
		}
		cols[table] = append(cols[table], column)
	}
	if err := rows.Err(); err != nil {
		return Capability{}, eris.Wrap(err, "schema: iterate columns")
	}
	return FromColumns(cols)
}

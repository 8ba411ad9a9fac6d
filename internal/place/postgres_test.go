package place

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/schema/schematest"
)

func placeRow(c schema.Capability, id, name string) []any {
	vals := []any{id, name, "JP", "Tokyo", "", ptr(35.68), ptr(139.76), "cafe", "owner", "", at}
	if c.PlaceHours {
		vals = append(vals, ptr("9-17"))
	}
	if c.PlacePaymentNote {
		vals = append(vals, nil)
	}
	return vals
}

func TestStoreGet_MissingHoursColumnIsNull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := schematest.Without(schematest.Full(), "places.hours", schema.TablePlaceMedia)
	c := schematest.Capability(cols)
	schematest.ExpectNegotiate(mock, cols)
	mock.ExpectQuery(`SELECT id, name, country, city, address, lat, lng, category, verification, about, updated_at, payment_note FROM places WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(readColumns(c)).AddRow(placeRow(c, "p1", "Cafe X")...))
	mock.ExpectQuery("FROM payment_accepts WHERE place_id = ANY").
		WithArgs([]string{"p1"}).
		WillReturnRows(pgxmock.NewRows([]string{"place_id", "asset", "network", "label", "preferred", "method"}).
			AddRow("p1", "BTC", "", "BTC", false, "onchain").
			AddRow("p1", "BTC", "Lightning", "Lightning", true, "lightning"))

	pl, err := NewStore(mock, nil).Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, pl.Hours)
	assert.Nil(t, pl.PaymentNote)
	assert.Equal(t, model.VerificationOwner, pl.Verification)
	require.Len(t, pl.Payments, 2)
	assert.Equal(t, "Lightning", pl.Payments[0].Label, "preferred first")
	assert.Empty(t, pl.Media)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGet_FullSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := schematest.Capability(schematest.Full())
	schematest.ExpectNegotiate(mock, schematest.Full())
	mock.ExpectQuery(`SELECT .*, hours, payment_note FROM places WHERE id`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(readColumns(c)).AddRow(placeRow(c, "p1", "Cafe X")...))
	mock.ExpectQuery("FROM payment_accepts").
		WithArgs([]string{"p1"}).
		WillReturnRows(pgxmock.NewRows([]string{"place_id", "asset", "network", "label", "preferred", "method"}))
	mock.ExpectQuery("FROM place_media pm LEFT JOIN submission_media").
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"media_id", "key", "content_type", "size", "created_at"}).
			AddRow("g1", "submissions/s1/gallery/g1", "image/png", int64(10), at))

	pl, err := NewStore(mock, nil).Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, pl.Hours)
	assert.Equal(t, "9-17", *pl.Hours)
	require.Len(t, pl.Media, 1)
	assert.Equal(t, "s1", pl.Media[0].SubmissionID)
	assert.Empty(t, pl.Payments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGet_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := schematest.Capability(schematest.Full())
	schematest.ExpectNegotiate(mock, schematest.Full())
	mock.ExpectQuery("FROM places WHERE id").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(readColumns(c)))

	_, err = NewStore(mock, nil).Get(context.Background(), "nope")
	assert.Equal(t, model.CodeNotFound, model.CodeOf(err))
}

func TestStoreList_FiltersAndPayments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := schematest.Capability(schematest.Legacy())
	schematest.ExpectNegotiate(mock, schematest.Legacy())
	mock.ExpectQuery(`FROM places WHERE country = \$1 AND city = \$2 ORDER BY name, id LIMIT \$3 OFFSET \$4`).
		WithArgs("JP", "Tokyo", 10, 0).
		WillReturnRows(pgxmock.NewRows(readColumns(c)).
			AddRow(placeRow(c, "p1", "Alpha")...).
			AddRow(placeRow(c, "p2", "Beta")...))
	mock.ExpectQuery(`SELECT place_id, asset, network, label, preferred FROM payment_accepts`).
		WithArgs([]string{"p1", "p2"}).
		WillReturnRows(pgxmock.NewRows([]string{"place_id", "asset", "network", "label", "preferred"}).
			AddRow("p2", "USDT", "tron", "USDT", false))

	out, err := NewStore(mock, nil).List(context.Background(), model.PlaceFilter{Country: "JP", City: "Tokyo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Payments)
	require.Len(t, out[1].Payments, 1)
	assert.Equal(t, "USDT", out[1].Payments[0].Label)
	assert.Nil(t, out[0].Hours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

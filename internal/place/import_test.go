package place

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/schema/schematest"
)

const importYAML = `
places:
  - id: p1
    name: Cafe X
    country: JP
    city: Tokyo
    verification: owner
    acceptedAssets:
      - BTC
      - asset: btc
        network: LN
        preferred: true
  - name: Bar Y
    country: SV
    city: San Salvador
`

func TestParseImport_YAML(t *testing.T) {
	f, err := ParseImport(strings.NewReader(importYAML))
	require.NoError(t, err)
	require.Len(t, f.Places, 2)

	first := f.Places[0].toPlace()
	assert.Equal(t, "p1", first.ID)
	assert.Equal(t, model.VerificationOwner, first.Verification)
	require.Len(t, first.Payments, 2)
	assert.Equal(t, "Lightning", first.Payments[0].Label)
	assert.True(t, first.Payments[0].Preferred)

	second := f.Places[1].toPlace()
	assert.Equal(t, model.VerificationDirectory, second.Verification)
	assert.Len(t, second.ID, 36)
	assert.Equal(t, second.ID, f.Places[1].toPlace().ID, "generated ids are stable")
}

func TestParseImport_JSON(t *testing.T) {
	f, err := ParseImport(strings.NewReader(`{"places":[{"name":"A","country":"DE","acceptedAssets":["eth"]}]}`))
	require.NoError(t, err)
	require.Len(t, f.Places, 1)
	assert.Equal(t, "ETH", f.Places[0].toPlace().Payments[0].Label)
}

func TestParseImport_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": "places:\n  - name: A\n    country: DE\n    colour: red\n",
		"missing name":  "places:\n  - country: DE\n",
		"bad level":     "places:\n  - name: A\n    country: DE\n    verification: gold\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseImport(strings.NewReader(doc))
			assert.Equal(t, model.CodeInvalidPayload, model.CodeOf(err))
		})
	}
}

func TestImport_WritesThroughPlaceWriters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f, err := ParseImport(strings.NewReader(importYAML))
	require.NoError(t, err)
	f.Places = f.Places[:1]

	cols := schematest.Without(schematest.Full(), schema.TablePayments)
	mock.ExpectBegin()
	schematest.ExpectNegotiate(mock, cols)
	mock.ExpectQuery(`INSERT INTO "places"`).
		WithArgs("p1", "Cafe X", "JP", "Tokyo", "", (*float64)(nil), (*float64)(nil), "", "owner", "",
			pgxmock.AnyArg(), (*string)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectExec(`INSERT INTO "verifications"`).
		WithArgs("p1", "owner", (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rep, err := Import(context.Background(), mock, nil, f)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Created: 1}, rep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_MissingPlacesTableRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f, err := ParseImport(strings.NewReader(importYAML))
	require.NoError(t, err)

	mock.ExpectBegin()
	schematest.ExpectNegotiate(mock, schematest.Without(schematest.Full(), schema.TablePlaces))
	mock.ExpectRollback()

	rep, err := Import(context.Background(), mock, nil, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "place: import")
	assert.Equal(t, model.CodeSchemaIncompatible, model.CodeOf(err))
	assert.True(t, errors.Is(err, schema.ErrRequiredTable))
	assert.Equal(t, ImportReport{}, rep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

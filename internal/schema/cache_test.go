package schema

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiator_TTLExpiry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("places", "id").
			AddRow("submissions", "id")
	}
	mock.ExpectQuery("information_schema").WithArgs(pgxmock.AnyArg()).WillReturnRows(rows())
	mock.ExpectQuery("information_schema").WithArgs(pgxmock.AnyArg()).WillReturnRows(rows())

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := NewNegotiator(time.Minute)
	n.now = func() time.Time { return clock }

	_, err = n.Negotiate(context.Background(), mock)
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)
	_, err = n.Negotiate(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Stats().Hits)

	clock = clock.Add(time.Minute)
	_, err = n.Negotiate(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n.Stats().Misses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package media

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/schema/schematest"
)

func TestInsertMappings(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	item := model.Media{
		ID: "m1", SubmissionID: "s1", Kind: model.MediaProof,
		Key: "submissions/s1/proof/m1", ContentType: "image/png", Size: 12, CreatedAt: created,
	}
	pool.ExpectExec(`INSERT INTO "submission_media" .* ON CONFLICT \("id"\) DO NOTHING`).
		WithArgs("m1", "s1", "proof", "submissions/s1/proof/m1", "image/png", int64(12), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = InsertMappings(context.Background(), pool, schematest.Capability(schematest.Full()), []model.Media{item})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestMappings_NoTableIsNoop(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	c := schematest.Capability(schematest.Without(schematest.Full(), schema.TableSubmissionMedia, schema.TablePlaceMedia))
	ctx := context.Background()

	require.NoError(t, InsertMappings(ctx, pool, c, []model.Media{{ID: "m1"}}))
	items, err := ListMappings(ctx, pool, c, "s1")
	require.NoError(t, err)
	assert.Empty(t, items)
	_, ok, err := GetMapping(ctx, pool, c, "s1", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, DeleteMapping(ctx, pool, c, "m1"))
	require.NoError(t, ReplacePlaceMedia(ctx, pool, c, "p1", []model.Media{{ID: "m1"}}))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetMapping_Missing(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery("FROM submission_media WHERE submission_id").
		WithArgs("s1", "m9").
		WillReturnRows(pgxmock.NewRows(mappingColumns))

	_, ok, err := GetMapping(context.Background(), pool, schematest.Capability(schematest.Full()), "s1", "m9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplacePlaceMedia_ClearsThenInsertsInOrder(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectExec("DELETE FROM place_media WHERE place_id").
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	pool.ExpectExec("INSERT INTO place_media").
		WithArgs("p1", "g2", "submissions/s1/gallery/g2", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO place_media").
		WithArgs("p1", "g1", "submissions/s1/gallery/g1", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = ReplacePlaceMedia(context.Background(), pool, schematest.Capability(schematest.Full()), "p1", []model.Media{
		{ID: "g2", Key: "submissions/s1/gallery/g2"},
		{ID: "g1", Key: "submissions/s1/gallery/g1"},
	})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPlaceMedia_JoinsMappingForContentType(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pool.ExpectQuery("LEFT JOIN submission_media").
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"media_id", "key", "content_type", "size", "created_at"}).
			AddRow("g1", "submissions/s1/gallery/g1", "image/webp", int64(99), created))

	items, err := PlaceMedia(context.Background(), pool, schematest.Capability(schematest.Full()), "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].SubmissionID)
	assert.Equal(t, "image/webp", items[0].ContentType)
	assert.Equal(t, model.MediaGallery, items[0].Kind)
}

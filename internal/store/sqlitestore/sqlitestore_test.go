package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
)

func TestInsertCountAndByQuery(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()
	defer db.Close(ctx)

	rec := model.Record{
		Query: "zelda", Text: "breath of the wild", Language: "en",
		Date:     time.Date(2020, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
		Username: "link", UserFollowers: 10, UserLocation: "Hyrule", Retweets: 1, Likes: 2,
	}
	require.NoError(t, db.Insert(ctx, rec))
	require.NoError(t, db.Insert(ctx, rec))
	require.NoError(t, db.Insert(ctx, model.Record{Query: "mario", Date: time.Now()}))

	n, err := db.Count(ctx, "zelda")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := db.ByQuery(ctx, "zelda")
	require.NoError(t, err)
	assert.Equal(t, []model.Record{rec, rec}, got)
}

func TestInsertAfterCloseIsWriteError(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Close(ctx))

	err = db.Insert(ctx, model.Record{Query: "q"})
	assert.ErrorIs(t, err, store.ErrWrite)
}

var _ store.Sink = (*DB)(nil)

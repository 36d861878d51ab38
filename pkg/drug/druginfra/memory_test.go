package druginfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/drug/druginfra"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUpsertIsIdempotentAndLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := druginfra.NewMemoryStore(drug.Drug{ID: "R1", Name: "Lisinopril"})

	first := drug.Content{SEOTitle: "first", ContentScore: 40}
	second := drug.Content{SEOTitle: "second", ContentScore: 90, Keywords: []string{"a"}}

	require.NoError(t, store.UpsertContent(ctx, "R1", first))
	require.NoError(t, store.UpsertContent(ctx, "R1", second))
	require.NoError(t, store.UpsertContent(ctx, "R1", second))

	got, err := store.GetContent(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", got.DrugID)
	assert.Equal(t, "second", got.SEOTitle)
	assert.Equal(t, 90, got.ContentScore)

	needing, err := store.FindNeedingContent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, needing)
}

func TestMemoryFindNeedingContentNewestFirst(t *testing.T) {
	now := time.Now()
	store := druginfra.NewMemoryStore(
		drug.Drug{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
		drug.Drug{ID: "new", CreatedAt: now},
		drug.Drug{ID: "mid", CreatedAt: now.Add(-time.Hour)},
	)

	ds, err := store.FindNeedingContent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "new", ds[0].ID)
	assert.Equal(t, "mid", ds[1].ID)
}

func TestMemoryFindStaleByAgeOrScore(t *testing.T) {
	now := time.Now()
	store := druginfra.NewMemoryStore(
		drug.Drug{ID: "fresh"}, drug.Drug{ID: "old"}, drug.Drug{ID: "weak"}, drug.Drug{ID: "none"},
	)
	store.SeedContent(drug.Content{DrugID: "fresh", ContentScore: 90, LastEnhanced: now})
	store.SeedContent(drug.Content{DrugID: "old", ContentScore: 90, LastEnhanced: now.Add(-40 * 24 * time.Hour)})
	store.SeedContent(drug.Content{DrugID: "weak", ContentScore: 30, LastEnhanced: now.Add(-time.Hour)})

	ds, err := store.FindStale(context.Background(), now.Add(-30*24*time.Hour), 60, 50)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "old", ds[0].ID)
	assert.Equal(t, "weak", ds[1].ID)
}

func TestMemoryGetByIDNotFound(t *testing.T) {
	_, err := druginfra.NewMemoryStore().GetByID(context.Background(), "R404")
	assert.True(t, errx.IsCode(err, drug.ErrNotFound))
}

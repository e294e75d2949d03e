package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mediahub/media"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := New(db, logrus.New())
	require.NoError(t, repo.Migrate())
	return repo
}

func imageAsset(user, title string, size int64) *media.Asset {
	return &media.Asset{
		Provider:     media.ProviderManagedCDN,
		ProviderID:   "media/" + title,
		OriginalName: title + ".jpg",
		MimeType:     "image/jpeg",
		Format:       "jpeg",
		FileSize:     size,
		Width:        800,
		Height:       600,
		Title:        title,
		Tags:         media.Tags{"food"},
		UserID:       user,
		Variants: []media.Variant{
			{Size: media.SizeOriginal, URL: "http://x/" + title + "/orig.jpg", FileSize: size, Format: "jpeg"},
			{Size: media.SizeThumbnail, URL: "http://x/" + title + "/thumb.jpg", FileSize: 100, Format: "jpeg"},
		},
	}
}

func TestCreateAndFindByID(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	asset := imageAsset("u1", "pasta", 2048)
	require.NoError(t, repo.Create(ctx, asset))
	require.NotZero(t, asset.ID)

	found, err := repo.FindByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "pasta", found.Title)
	assert.Len(t, found.Variants, 2)
	assert.Equal(t, media.Tags{"food"}, found.Tags)

	orig, ok := found.VariantBySize(media.SizeOriginal)
	require.True(t, ok)
	assert.Equal(t, int64(2048), orig.FileSize)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := testRepo(t)
	_, err := repo.FindByID(context.Background(), 9999)
	assert.True(t, media.IsNotFound(err))
}

func TestFindFilters(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, imageAsset("u1", "pasta", 100)))
	require.NoError(t, repo.Create(ctx, imageAsset("u2", "salad", 200)))

	video := imageAsset("u1", "tour", 300)
	video.MimeType = "video/mp4"
	video.Format = "mp4"
	video.Tags = media.Tags{"promo"}
	require.NoError(t, repo.Create(ctx, video))

	byUser, err := repo.Find(ctx, media.ListQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	images, err := repo.Find(ctx, media.ListQuery{Type: "image"})
	require.NoError(t, err)
	assert.Len(t, images, 2)

	videos, err := repo.Find(ctx, media.ListQuery{Type: "video"})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "tour", videos[0].Title)

	tagged, err := repo.Find(ctx, media.ListQuery{Tags: []string{"promo", "missing"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "tour", tagged[0].Title)
}

func TestFindSortAndPaginate(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i, title := range []string{"b", "c", "a"} {
		require.NoError(t, repo.Create(ctx, imageAsset("u1", title, int64(100*(i+1)))))
	}

	byTitle, err := repo.Find(ctx, media.ListQuery{SortField: "title", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, byTitle, 3)
	assert.Equal(t, "a", byTitle[0].Title)
	assert.Equal(t, "c", byTitle[2].Title)

	bySize, err := repo.Find(ctx, media.ListQuery{SortField: "fileSize", SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(300), bySize[0].FileSize)

	page, err := repo.Find(ctx, media.ListQuery{SortField: "title", SortOrder: "asc", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Title)
}

func TestVariantSizeUniquePerAsset(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	asset := imageAsset("u1", "pasta", 100)
	asset.Variants = append(asset.Variants,
		media.Variant{Size: media.SizeOriginal, URL: "http://x/dup.jpg", Format: "jpeg"})
	assert.Error(t, repo.Create(ctx, asset))
}

func TestUpdateMetadata(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	asset := imageAsset("u1", "pasta", 100)
	require.NoError(t, repo.Create(ctx, asset))

	title := "carbonara"
	require.NoError(t, repo.UpdateMetadata(ctx, asset.ID, &title, nil, media.Tags{"dinner"}))

	found, err := repo.FindByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "carbonara", found.Title)
	assert.Equal(t, media.Tags{"dinner"}, found.Tags)
	// untouched field survives
	assert.Equal(t, "", found.Description)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	a := imageAsset("u1", "pasta", 100)
	b := imageAsset("u1", "salad", 200)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.Delete(ctx, a.ID))
	require.NoError(t, repo.Delete(ctx, a.ID)) // second delete: no error

	_, err := repo.FindByID(ctx, a.ID)
	assert.True(t, media.IsNotFound(err))

	// the other asset is unaffected
	still, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "salad", still.Title)
}

func TestGetStats(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, imageAsset("u1", fmt.Sprintf("img%d", i), 100)))
	}
	video := imageAsset("u2", "tour", 1000)
	video.MimeType = "video/mp4"
	video.Provider = media.ProviderObjectStore
	require.NoError(t, repo.Create(ctx, video))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Images)
	assert.Equal(t, int64(1), stats.Videos)
	assert.Equal(t, int64(1300), stats.TotalSizeBytes)
	assert.Equal(t, int64(3), stats.ByProvider[string(media.ProviderManagedCDN)])
	assert.Equal(t, int64(1), stats.ByProvider[string(media.ProviderObjectStore)])
}

func TestOrphanLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateOrphan(ctx, &media.OrphanArtifact{
		Provider:   media.ProviderObjectStore,
		ProviderID: "media/abc",
		Kind:       "video",
	}))

	orphans, err := repo.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	require.NoError(t, repo.DeleteOrphan(ctx, orphans[0].ID))
	orphans, err = repo.ListOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

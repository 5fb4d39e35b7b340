package db

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/reddit-profiler/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func openCache(t *testing.T, path string) *Cache {
	t.Helper()
	cache, err := NewCache(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachePutGet(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))

	_, ok := cache.Get("alice")
	assert.False(t, ok)

	rec := models.NewAccountRecord("Alice", 1600000000, models.StatusActive)
	require.NoError(t, cache.Put(rec))

	// lookups are case-insensitive
	got, ok := cache.Get("ALICE")
	require.True(t, ok)
	assert.Equal(t, "Alice", got.Username)
	assert.Equal(t, 2020, got.CreatedYear)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestCacheTerminalStatusSkipListed(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))

	require.NoError(t, cache.Put(models.NewAccountRecord("gone", 0, models.StatusNotFound)))
	require.NoError(t, cache.Put(models.NewAccountRecord("erased", 0, models.StatusDeleted)))
	require.NoError(t, cache.Put(models.NewAccountRecord("alive", 1600000000, models.StatusActive)))

	assert.True(t, cache.IsSkipped("gone"))
	assert.True(t, cache.IsSkipped("ERASED"))
	assert.False(t, cache.IsSkipped("alive"))

	// skip-listed usernames still have their record of truth in the cache
	got, ok := cache.Get("gone")
	require.True(t, ok)
	assert.Equal(t, models.StatusNotFound, got.Status)
}

func TestCacheDefaultSkips(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))

	assert.True(t, cache.IsSkipped("[deleted]"))
	assert.True(t, cache.IsSkipped("AutoModerator"))
}

func TestCacheErrorNeverDowngradesResolved(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))

	require.NoError(t, cache.Put(models.NewAccountRecord("alice", 1600000000, models.StatusActive)))
	require.NoError(t, cache.Put(models.NewAccountRecord("alice", 0, models.StatusError)))

	got, ok := cache.Get("alice")
	require.True(t, ok)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, int64(1600000000), got.CreatedUTC)
}

func TestCacheErrorPromotedToResolved(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))

	require.NoError(t, cache.Put(models.NewAccountRecord("bob", 0, models.StatusError)))
	require.NoError(t, cache.Put(models.NewAccountRecord("bob", 1500000000, models.StatusSuspended)))

	got, ok := cache.Get("bob")
	require.True(t, ok)
	assert.Equal(t, models.StatusSuspended, got.Status)
	assert.Equal(t, 2017, got.CreatedYear)
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := NewCache(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.Put(models.NewAccountRecord("alice", 1600000000, models.StatusActive)))
	require.NoError(t, first.Put(models.NewAccountRecord("gone", 0, models.StatusNotFound)))
	require.NoError(t, first.Close())

	second := openCache(t, path)
	got, ok := second.Get("alice")
	require.True(t, ok)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.True(t, second.IsSkipped("gone"))
	assert.Equal(t, 2, second.Size())
}

func TestCachePersistsActivityFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	rec := models.NewAccountRecord("gone", 0, models.StatusNotFound)
	rec.CreatedUTC = 1262304000
	rec.CreatedYear = 2010
	rec.Source = models.SourceEstimated
	rec.LastActivityUTC = 1600000000

	first, err := NewCache(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.Put(rec))
	require.NoError(t, first.Close())

	second := openCache(t, path)
	got, ok := second.Get("gone")
	require.True(t, ok)
	assert.Equal(t, models.SourceEstimated, got.Source)
	assert.Equal(t, 2010, got.CreatedYear)
	assert.Equal(t, int64(1600000000), got.LastActivityUTC)
}

func TestCacheSkipSetSnapshot(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, cache.Put(models.NewAccountRecord("gone", 0, models.StatusNotFound)))

	set := cache.SkipSet()
	_, ok := set["gone"]
	assert.True(t, ok)

	// mutating the snapshot must not touch the cache
	delete(set, "gone")
	assert.True(t, cache.IsSkipped("gone"))
}

package datastore

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-list-filter/internal/common/logger"
)

type countingDictionary struct {
	titles    []string
	locations []string
	err       error
	calls     int
}

func (d *countingDictionary) PostTitles(ctx context.Context, postType string) ([]string, error) {
	d.calls++
	return d.titles, d.err
}

func (d *countingDictionary) LocationNames(ctx context.Context) ([]string, error) {
	d.calls++
	return d.locations, d.err
}

func createMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestCachedDictionary_CachesTitles(t *testing.T) {
	mr, rdb := createMiniredis(t)
	next := &countingDictionary{titles: []string{"Mary Jones", "Mary Smith"}}
	cache := NewCachedDictionary(next, rdb, time.Minute, logger.NewTestLogger(t))

	first, err := cache.PostTitles(context.Background(), "contacts")
	require.NoError(t, err)
	second, err := cache.PostTitles(context.Background(), "contacts")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists("ai-filter:dictionary:titles:contacts"))
	assert.Equal(t, time.Minute, mr.TTL("ai-filter:dictionary:titles:contacts"))
}

func TestCachedDictionary_ExpiresAndInvalidates(t *testing.T) {
	mr, rdb := createMiniredis(t)
	next := &countingDictionary{locations: []string{"Springfield"}}
	cache := NewCachedDictionary(next, rdb, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := cache.LocationNames(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = cache.LocationNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	require.NoError(t, cache.Invalidate(ctx, "contacts"))
	_, err = cache.LocationNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedDictionary_UnreadableEntry(t *testing.T) {
	mr, rdb := createMiniredis(t)
	require.NoError(t, mr.Set("ai-filter:dictionary:locations", "not json"))

	next := &countingDictionary{locations: []string{"Springfield"}}
	cache := NewCachedDictionary(next, rdb, time.Minute, logger.NewTestLogger(t))

	names, err := cache.LocationNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Springfield"}, names)
	assert.Equal(t, 1, next.calls)
}

func TestCachedDictionary_RedisDownFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := "ai-filter:dictionary:titles:contacts"

	mock.ExpectGet(key).SetErr(stderrors.New("connection refused"))
	mock.ExpectSet(key, []byte(`["Mary Jones"]`), time.Minute).SetErr(stderrors.New("connection refused"))

	next := &countingDictionary{titles: []string{"Mary Jones"}}
	cache := NewCachedDictionary(next, rdb, time.Minute, logger.NewTestLogger(t))

	titles, err := cache.PostTitles(context.Background(), "contacts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mary Jones"}, titles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDictionary_SourceError(t *testing.T) {
	_, rdb := createMiniredis(t)
	next := &countingDictionary{err: stderrors.New("db down")}
	cache := NewCachedDictionary(next, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cache.PostTitles(context.Background(), "contacts")
	require.Error(t, err)
}

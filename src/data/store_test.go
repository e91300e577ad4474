package data

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.GetActive(ctx, "c1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, s.SetActive(ctx, "c1", []byte(`{"v":1}`)))
	require.NoError(t, s.SetActive(ctx, "c2", []byte(`{"v":2}`)))
	require.NoError(t, s.SetActive(ctx, "c1", []byte(`{"v":3}`)))

	got, err := s.GetActive(ctx, "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":3}`, string(got), "last write wins")

	all, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.RemoveActive(ctx, "c1"))
	_, err = s.GetActive(ctx, "c1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	require.NoError(t, s.RemoveActive(ctx, "missing"))

	bucket, err := s.ListArchived(ctx, "gym-1")
	require.NoError(t, err)
	assert.Empty(t, bucket)

	require.NoError(t, s.AppendArchived(ctx, "gym-1", []byte(`{"n":1}`)))
	require.NoError(t, s.AppendArchived(ctx, "gym-1", []byte(`{"n":2}`)))
	bucket, err = s.ListArchived(ctx, "gym-1")
	require.NoError(t, err)
	require.Len(t, bucket, 2)
	assert.JSONEq(t, `{"n":1}`, string(bucket[0]))
	assert.JSONEq(t, `{"n":2}`, string(bucket[1]))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := []byte(`{"v":1}`)
	require.NoError(t, s.SetActive(ctx, "c1", rec))
	rec[2] = 'x'

	got, err := s.GetActive(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, "")
	exerciseStore(t, s)

	assert.True(t, mr.Exists("raidparty:active"))
	assert.True(t, mr.Exists("raidparty:archive:gym-1"))
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := ConnectRedis("not-a-url")
	assert.Error(t, err)
}

func TestEnsureParam(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"u:p@tcp(h:3306)/db", "u:p@tcp(h:3306)/db?parseTime=true"},
		{"u:p@tcp(h:3306)/db?tls=true", "u:p@tcp(h:3306)/db?tls=true&parseTime=true"},
		{"u:p@tcp(h:3306)/db?parseTime=false", "u:p@tcp(h:3306)/db?parseTime=false"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ensureParam(tt.dsn, "parseTime", "true"))
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := OpenStore(ctx, OpenOptions{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	s, closeFn, err = OpenStore(ctx, OpenOptions{Backend: "redis", RedisURL: "redis://" + mr.Addr() + "/0", RedisPrefix: "t"})
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, "c1", []byte(`{}`)))
	assert.True(t, mr.Exists("t:active"))
	assert.NoError(t, closeFn())

	_, _, err = OpenStore(ctx, OpenOptions{Backend: "mysql"})
	assert.Error(t, err)

	_, closeFn, err = OpenStore(ctx, OpenOptions{Backend: "etcd"})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}

package drinks

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Redis instance, e.g.
// `docker run -p 6379:6379 redis` and TEST_REDIS_ADDR=localhost:6379.
// Drink keys in database 15 are removed through Reset.
func newTestRedisStore(t *testing.T) Store {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), addr, "", 15)
	require.NoError(t, err)
	require.NoError(t, s.Reset(context.Background()))
	t.Cleanup(func() {
		s.Reset(context.Background())
		s.Close()
	})
	return s
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	created, err := s.Create(ctx, water())
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)
	fw, err := s.Create(ctx, flatwhite)
	require.NoError(t, err)
	require.Equal(t, 2, fw.ID)

	_, err = s.Create(ctx, water())
	require.True(t, errors.Is(err, ErrTitleExists))

	fw.Title = "water"
	_, err = s.Update(ctx, fw)
	require.True(t, errors.Is(err, ErrTitleExists))

	fw.Title = "flat white"
	_, err = s.Update(ctx, fw)
	require.NoError(t, err)
	got, err := s.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, fw, got)

	require.NoError(t, s.Delete(ctx, 1))
	require.True(t, errors.Is(s.Delete(ctx, 1), ErrNotFound))
	_, err = s.Get(ctx, 1)
	require.True(t, errors.Is(err, ErrNotFound))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Drink{fw}, list)

	require.NoError(t, Seed(ctx, s, DefaultSeed))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].ID)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofumi529/Little-Artists-Studio/domain/usage"
)

func exerciseStore(t *testing.T, s usage.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("one")))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	require.NoError(t, s.Set(ctx, "k", []byte("two")))
	v, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), v)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	t.Run("Should not alias caller buffers", func(t *testing.T) {
		buf := []byte("abc")
		require.NoError(t, s.Set(context.Background(), "b", buf))
		buf[0] = 'z'
		v, _, _ := s.Get(context.Background(), "b")
		assert.Equal(t, "abc", string(v))
	})
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "studio.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	t.Run("Should persist across reopen", func(t *testing.T) {
		s, err := NewSQLiteStore(path)
		require.NoError(t, err)
		defer s.Close()

		v, ok, err := s.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("two"), v)
	})
}

func TestSQLiteStore_WithLimiter(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := usage.NewLimiter(s, usage.WithClock(func() time.Time { return now }), usage.WithLocation(time.UTC))

	_, err = l.Increment(context.Background())
	require.NoError(t, err)
	st, err := l.CheckLimit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, st.UsedToday)
	raw, ok, err := s.Get(context.Background(), usage.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"date":"Sun Jun 01 2025","count":1}`, string(raw))
}

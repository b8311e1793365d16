package usage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) record(t *testing.T) Record {
	t.Helper()
	var rec Record
	require.NoError(t, json.Unmarshal(s.data[StorageKey], &rec))
	return rec
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestLimiter(store Store, c *clock) *Limiter {
	return NewLimiter(store, WithClock(c.Now), WithLocation(time.UTC))
}

func TestLimiter_CheckLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)}

	t.Run("Should write a fresh record when none exists", func(t *testing.T) {
		store := newFakeStore()
		st, err := newTestLimiter(store, c).CheckLimit(ctx)

		require.NoError(t, err)
		assert.Equal(t, Status{Allowed: true, Remaining: 5, UsedToday: 0, Limit: 5}, st)
		assert.Equal(t, Record{Date: "Wed Jan 15 2025", Count: 0}, store.record(t))
	})

	t.Run("Should reset a record from an earlier day", func(t *testing.T) {
		store := newFakeStore()
		store.data[StorageKey] = []byte(`{"date":"Tue Jan 14 2025","count":5}`)

		st, err := newTestLimiter(store, c).CheckLimit(ctx)

		require.NoError(t, err)
		assert.True(t, st.Allowed)
		assert.Equal(t, 0, st.UsedToday)
		assert.Equal(t, 0, store.record(t).Count, "the reset is persisted")
	})

	t.Run("Should treat an unreadable record as a new day", func(t *testing.T) {
		store := newFakeStore()
		store.data[StorageKey] = []byte(`not json`)

		st, err := newTestLimiter(store, c).CheckLimit(ctx)

		require.NoError(t, err)
		assert.Equal(t, 5, st.Remaining)
	})

	t.Run("Should deny once the cap is reached", func(t *testing.T) {
		store := newFakeStore()
		store.data[StorageKey] = []byte(`{"date":"Wed Jan 15 2025","count":5}`)

		st, err := newTestLimiter(store, c).CheckLimit(ctx)

		require.NoError(t, err)
		assert.False(t, st.Allowed)
		assert.Equal(t, 0, st.Remaining)
		assert.Equal(t, 5, st.UsedToday)
	})

	t.Run("Should surface store errors", func(t *testing.T) {
		store := newFakeStore()
		store.getErr = errors.New("disk gone")

		_, err := newTestLimiter(store, c).CheckLimit(ctx)
		assert.ErrorContains(t, err, "disk gone")
	})
}

func TestLimiter_Increment(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2025, 1, 15, 23, 59, 0, 0, time.UTC)}
	store := newFakeStore()
	l := newTestLimiter(store, c)

	for i := 1; i <= 5; i++ {
		st, err := l.Increment(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, st.UsedToday)
		assert.Equal(t, 5-i, st.Remaining)
	}

	st, err := l.CheckLimit(ctx)
	require.NoError(t, err)
	assert.False(t, st.Allowed)

	t.Run("Should start over after midnight", func(t *testing.T) {
		c.now = c.now.Add(2 * time.Minute)

		st, err := l.CheckLimit(ctx)
		require.NoError(t, err)
		assert.True(t, st.Allowed)
		assert.Equal(t, 5, st.Remaining)
		assert.Equal(t, "Thu Jan 16 2025", store.record(t).Date)
	})

	t.Run("Should never report negative remaining uses", func(t *testing.T) {
		store.data[StorageKey] = []byte(`{"date":"Thu Jan 16 2025","count":9}`)
		st, err := l.Increment(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, st.Remaining)
		assert.Equal(t, 10, st.UsedToday)
	})
}

func TestLimiter_Options(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	c := &clock{now: time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC)}
	store := newFakeStore()

	l := NewLimiter(store, WithClock(c.Now), WithLocation(tokyo), WithLimit(2))
	st, err := l.CheckLimit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, st.Limit)
	assert.Equal(t, "Thu Jan 16 2025", store.record(t).Date, "the calendar day follows the client zone")
}

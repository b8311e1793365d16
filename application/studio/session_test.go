package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/domain/canvas"
	"github.com/ofumi529/Little-Artists-Studio/domain/usage"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/storage"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/client"
)

type fakeAnalyzer struct {
	calls   int
	dataURL string
	result  analysis.Result
	err     error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, dataURL string) (analysis.Result, error) {
	f.calls++
	f.dataURL = dataURL
	return f.result, f.err
}

// lockingStore accepts the first write and rejects the rest.
type lockingStore struct {
	*storage.MemoryStore
	writes int
}

func (s *lockingStore) Set(ctx context.Context, key string, value []byte) error {
	s.writes++
	if s.writes > 1 {
		return errors.New("database is locked")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

type fakeComposer struct {
	title, body string
}

func (f *fakeComposer) Compose(artwork image.Image, title, body string) (*image.RGBA, error) {
	f.title, f.body = title, body
	return image.NewRGBA(image.Rect(0, 0, 1200, 630)), nil
}

func newTestSession(t *testing.T, a Analyzer, c ShareComposer) (*Session, *usage.Limiter) {
	t.Helper()
	surface, err := canvas.NewSurface(100, 80)
	require.NoError(t, err)
	t.Cleanup(func() { _ = surface.Close() })

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	limiter := usage.NewLimiter(storage.NewMemoryStore(),
		usage.WithClock(func() time.Time { return now }),
		usage.WithLocation(time.UTC),
	)
	s, err := NewSession(surface, limiter, a, c, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return s, limiter
}

func pixel(s *Session, x, y int) color.RGBA {
	return s.Surface().Image().RGBAAt(x, y)
}

func drawLine(t *testing.T, s *Session) {
	t.Helper()
	s.OnStrokeStart(10, 40)
	_, err := s.OnStrokeMove(90, 40)
	require.NoError(t, err)
	_, err = s.OnStrokeEnd()
	require.NoError(t, err)
}

func TestSession_Drawing(t *testing.T) {
	s, _ := newTestSession(t, &fakeAnalyzer{}, nil)

	st := s.State()
	assert.Equal(t, canvas.Pen, st.Tool)
	assert.False(t, st.CanUndo)
	assert.False(t, st.CanRedo)

	t.Run("Should record a stroke and undo it", func(t *testing.T) {
		drawLine(t, s)
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(s, 50, 40))
		assert.True(t, s.State().CanUndo)

		st, err := s.Undo()
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 50, 40))
		assert.False(t, st.CanUndo)
		assert.True(t, st.CanRedo)

		st, err = s.Redo()
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(s, 50, 40))
		assert.False(t, st.CanRedo)
	})

	t.Run("Should not record a move without a stroke", func(t *testing.T) {
		before := s.State()
		_, err := s.OnStrokeMove(5, 5)
		require.NoError(t, err)
		st, err := s.OnStrokeEnd()
		require.NoError(t, err)
		assert.Equal(t, before.CanRedo, st.CanRedo)
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 5, 5))
	})

	t.Run("Should make clear undoable", func(t *testing.T) {
		_, err := s.Clear()
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 50, 40))

		_, err = s.Undo()
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(s, 50, 40))
	})

	t.Run("Should discard redo after a new stroke", func(t *testing.T) {
		_, err := s.Undo()
		require.NoError(t, err)
		require.True(t, s.State().CanRedo)

		_, err = s.SelectColor("#ff0000")
		require.NoError(t, err)
		drawLine(t, s)
		assert.False(t, s.State().CanRedo)
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, pixel(s, 50, 40))
	})

	t.Run("Should reject unknown tools and colors", func(t *testing.T) {
		_, err := s.SelectTool("spray")
		assert.ErrorIs(t, err, canvas.ErrInvalidTool)
		_, err = s.SelectColor("red")
		assert.ErrorIs(t, err, canvas.ErrInvalidColor)
		assert.Equal(t, 50.0, s.SetBrushSize(80).BrushSize)
	})

	t.Run("Should resize without touching history", func(t *testing.T) {
		before := s.State()
		st, err := s.Resize(200, 160)
		require.NoError(t, err)
		assert.Equal(t, 200, st.Width)
		assert.Equal(t, 160, st.Height)
		assert.Equal(t, before.CanUndo, st.CanUndo)
	})
}

func TestSession_Save(t *testing.T) {
	s, _ := newTestSession(t, &fakeAnalyzer{}, nil)
	drawLine(t, s)

	var buf bytes.Buffer
	name, err := s.Save(&buf)
	require.NoError(t, err)
	assert.Equal(t, "artwork-2025-06-01T09-00-00.png", name)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())
}

func TestSession_OnAnalyzeRequested(t *testing.T) {
	t.Run("Should analyze, count the use and compose the share card", func(t *testing.T) {
		a := &fakeAnalyzer{result: analysis.Parse("【にじのお城】\nすごいね！")}
		c := &fakeComposer{}
		s, _ := newTestSession(t, a, c)

		out, err := s.OnAnalyzeRequested(context.Background())
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(a.dataURL, canvas.DataURLPrefix))
		assert.Equal(t, "【にじのお城】", out.Result.Title)
		assert.Equal(t, 1, out.Usage.UsedToday)
		assert.Equal(t, 4, out.Usage.Remaining)
		require.NotNil(t, out.ShareImage)
		assert.Equal(t, "【にじのお城】", c.title)
		assert.Equal(t, "すごいね！", c.body)
		assert.True(t, strings.HasPrefix(out.ShareURL, analysis.IntentEndpoint+"?text="))
	})

	t.Run("Should refuse once the daily limit is used", func(t *testing.T) {
		a := &fakeAnalyzer{result: analysis.Parse("t\nb")}
		s, _ := newTestSession(t, a, nil)

		for i := 0; i < usage.DefaultDailyLimit; i++ {
			out, err := s.OnAnalyzeRequested(context.Background())
			require.NoError(t, err)
			assert.Nil(t, out.ShareImage)
		}

		_, err := s.OnAnalyzeRequested(context.Background())
		assert.ErrorIs(t, err, ErrDailyLimitReached)
		var le *LimitReachedError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, 5, le.Status.UsedToday)
		assert.Equal(t, 0, le.Status.Remaining)
		assert.Equal(t, usage.DefaultDailyLimit, a.calls)
	})

	t.Run("Should not count failed analyses", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
		}{
			{"relay error", &client.RelayError{Status: 500, Message: "x", Debug: "ANTHROPIC_API_KEY not set"}},
			{"transport error", &client.TransportError{Message: client.MsgConnection, Err: errors.New("refused")}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				a := &fakeAnalyzer{err: tt.err}
				s, limiter := newTestSession(t, a, nil)

				_, err := s.OnAnalyzeRequested(context.Background())
				assert.ErrorIs(t, err, tt.err)

				st, err := limiter.CheckLimit(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 0, st.UsedToday)
			})
		}
	})
}

func TestSession_OnAnalyzeRequested_UsageNotStored(t *testing.T) {
	surface, err := canvas.NewSurface(40, 30)
	require.NoError(t, err)
	t.Cleanup(func() { _ = surface.Close() })

	a := &fakeAnalyzer{result: analysis.Parse("【そら】\nきれい")}
	s, err := NewSession(surface, usage.NewLimiter(&lockingStore{MemoryStore: storage.NewMemoryStore()}), a, nil)
	require.NoError(t, err)

	out, err := s.OnAnalyzeRequested(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "【そら】", out.Result.Title)
	assert.Equal(t, 1, out.Usage.UsedToday)
	assert.Equal(t, usage.DefaultDailyLimit-1, out.Usage.Remaining)
	assert.True(t, out.Usage.Allowed)
}

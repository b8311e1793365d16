package canvas

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSurface(t *testing.T, w, h int) *Surface {
	t.Helper()
	s, err := NewSurface(w, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pixel(s *Surface, x, y int) color.RGBA {
	return s.Image().RGBAAt(x, y)
}

func drawLine(t *testing.T, s *Surface, x0, y0, x1, y1 float64) {
	t.Helper()
	s.BeginStroke(x0, y0)
	require.NoError(t, s.MoveStroke(x1, y1))
	require.True(t, s.EndStroke())
}

func TestNewSurface(t *testing.T) {
	t.Run("Should start white with pen defaults", func(t *testing.T) {
		s := newTestSurface(t, 100, 80)

		assert.Equal(t, 100, s.Width())
		assert.Equal(t, 80, s.Height())
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 0, 0))
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 99, 79))
		assert.Equal(t, Pen, s.Tool())
		assert.Equal(t, DefaultColor, s.Color())
		assert.Equal(t, float64(DefaultBrushSize), s.BrushSize())
	})

	t.Run("Should reject empty sizes", func(t *testing.T) {
		_, err := NewSurface(0, 10)
		assert.ErrorIs(t, err, ErrInvalidSize)
	})
}

func TestSurface_Pen(t *testing.T) {
	s := newTestSurface(t, 100, 100)
	require.NoError(t, s.SetColor("#ff0000"))
	s.SetBrushSize(10)

	drawLine(t, s, 10, 50, 90, 50)

	got := pixel(s, 50, 50)
	assert.InDelta(t, 255, got.R, 2)
	assert.InDelta(t, 0, got.G, 2)
	assert.InDelta(t, 0, got.B, 2)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 50, 20), "pixels away from the stroke are untouched")
}

func TestSurface_MoveWithoutStroke(t *testing.T) {
	s := newTestSurface(t, 50, 50)
	s.SetBrushSize(20)

	require.NoError(t, s.MoveStroke(25, 25))

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 25, 25))
	assert.False(t, s.EndStroke(), "ending without a stroke is not a change")
}

func TestSurface_Eraser(t *testing.T) {
	s := newTestSurface(t, 100, 100)
	s.SetBrushSize(10)
	drawLine(t, s, 10, 50, 90, 50)

	require.NoError(t, s.SetTool(Eraser))
	s.SetBrushSize(20)
	drawLine(t, s, 50, 10, 50, 90)

	assert.Equal(t, uint8(0), pixel(s, 50, 50).A, "erased pixels are transparent")
	assert.Equal(t, uint8(0), pixel(s, 50, 20).A)
	assert.Equal(t, uint8(255), pixel(s, 20, 20).A, "pixels outside the eraser keep their content")

	t.Run("Should paint again after erasing", func(t *testing.T) {
		require.NoError(t, s.SetTool(Pen))
		drawLine(t, s, 40, 30, 60, 30)
		assert.Equal(t, uint8(255), pixel(s, 50, 30).A)
	})
}

func TestSurface_Settings(t *testing.T) {
	s := newTestSurface(t, 10, 10)

	assert.ErrorIs(t, s.SetColor("red"), ErrInvalidColor)
	assert.ErrorIs(t, s.SetColor("#12345"), ErrInvalidColor)
	assert.NoError(t, s.SetColor("#A0522d"))
	assert.ErrorIs(t, s.SetTool("brush"), ErrInvalidTool)

	s.SetBrushSize(0)
	assert.Equal(t, float64(MinBrushSize), s.BrushSize())
	s.SetBrushSize(500)
	assert.Equal(t, float64(MaxBrushSize), s.BrushSize())
}

func TestSurface_SnapshotRestore(t *testing.T) {
	s := newTestSurface(t, 60, 60)
	s.SetBrushSize(8)
	drawLine(t, s, 5, 30, 55, 30)
	before := s.Image()

	snap, err := s.Snapshot()
	require.NoError(t, err)

	s.Clear()
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 30, 30))

	require.NoError(t, s.Restore(snap))
	assert.Equal(t, before.Pix, s.Image().Pix)

	t.Run("Should keep transparency through a snapshot", func(t *testing.T) {
		require.NoError(t, s.SetTool(Eraser))
		drawLine(t, s, 30, 5, 30, 55)
		snap, err := s.Snapshot()
		require.NoError(t, err)

		s.Clear()
		require.NoError(t, s.Restore(snap))
		assert.Equal(t, uint8(0), pixel(s, 30, 10).A)
	})

	t.Run("Should reject garbage", func(t *testing.T) {
		assert.Error(t, s.Restore([]byte("not a png")))
	})
}

func TestSurface_DataURL(t *testing.T) {
	s := newTestSurface(t, 20, 10)

	url, err := s.DataURL()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, DataURLPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, DataURLPrefix))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
}

func TestSurface_Resize(t *testing.T) {
	s := newTestSurface(t, 100, 100)
	require.NoError(t, s.SetColor("#0000ff"))
	s.SetBrushSize(20)
	drawLine(t, s, 0, 50, 100, 50)

	require.NoError(t, s.Resize(50, 50))

	assert.Equal(t, 50, s.Width())
	assert.Equal(t, 50, s.Height())
	got := pixel(s, 25, 25)
	assert.InDelta(t, 255, got.B, 4)
	assert.InDelta(t, 0, got.R, 4)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(s, 25, 5))

	t.Run("Should keep drawing at the new size", func(t *testing.T) {
		drawLine(t, s, 5, 45, 45, 45)
		assert.InDelta(t, 255, pixel(s, 25, 45).B, 4)
	})

	assert.ErrorIs(t, s.Resize(0, 5), ErrInvalidSize)
}

func TestViewportSize(t *testing.T) {
	tests := []struct {
		name         string
		cw, ch       int
		mobile       bool
		wantW, wantH int
	}{
		{"large desktop", 1400, 900, false, 800, 600},
		{"small desktop", 700, 500, false, 660, 460},
		{"phone", 390, 700, true, 350, 490},
		{"narrow phone", 320, 600, true, 300, 420},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ViewportSize(tt.cw, tt.ch, tt.mobile)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 890, time.UTC)
	assert.Equal(t, "artwork-2025-03-04T05-06-07.png", ExportFilename(ts))
}

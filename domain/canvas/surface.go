// Package canvas is the raster drawing surface: freehand strokes with a
// pen or an eraser on a white sheet, plus snapshot and export helpers.
package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"regexp"
	"time"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

// Tool selects how a stroke affects the surface.
type Tool string

const (
	// Pen paints the current color over existing content.
	Pen Tool = "pen"
	// Eraser removes existing content, leaving transparent pixels.
	Eraser Tool = "eraser"
)

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool { return t == Pen || t == Eraser }

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	DefaultColor     = "#000000"
	DefaultBrushSize = 5
	MinBrushSize     = 1
	MaxBrushSize     = 50

	// DataURLPrefix precedes the base64 PNG in DataURL.
	DataURLPrefix = "data:image/png;base64,"
)

var (
	ErrInvalidSize  = errors.New("canvas: width and height must be positive")
	ErrInvalidColor = errors.New("canvas: color must be #rrggbb")
	ErrInvalidTool  = errors.New("canvas: unknown tool")

	hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Surface is a white raster sheet with the current tool, color and brush
// size. It is not safe for concurrent use.
type Surface struct {
	pm *gg.Pixmap
	dc *gg.Context

	// mask receives eraser segments before they are cut out of pm.
	mask   *gg.Pixmap
	maskDC *gg.Context

	tool  Tool
	color string
	width float64

	drawing      bool
	lastX, lastY float64
}

// NewSurface creates a white surface of the given size.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	s := &Surface{
		tool:  Pen,
		color: DefaultColor,
		width: DefaultBrushSize,
	}
	s.allocate(width, height)
	s.Clear()
	return s, nil
}

func (s *Surface) allocate(width, height int) {
	if s.dc != nil {
		_ = s.dc.Close()
	}
	if s.maskDC != nil {
		_ = s.maskDC.Close()
		s.maskDC, s.mask = nil, nil
	}
	s.pm = gg.NewPixmap(width, height)
	s.dc = gg.NewContext(width, height, gg.WithPixmap(s.pm))
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.SetLineJoin(gg.LineJoinRound)
}

// Close releases the drawing contexts.
func (s *Surface) Close() error {
	var err error
	if s.dc != nil {
		err = s.dc.Close()
	}
	if s.maskDC != nil {
		err = errors.Join(err, s.maskDC.Close())
	}
	return err
}

func (s *Surface) Width() int  { return s.pm.Width() }
func (s *Surface) Height() int { return s.pm.Height() }

func (s *Surface) Tool() Tool         { return s.tool }
func (s *Surface) Color() string      { return s.color }
func (s *Surface) BrushSize() float64 { return s.width }

// Drawing reports whether a stroke is in progress.
func (s *Surface) Drawing() bool { return s.drawing }

// SetTool switches between pen and eraser.
func (s *Surface) SetTool(t Tool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTool, t)
	}
	s.tool = t
	return nil
}

// SetColor sets the pen color as #rrggbb.
func (s *Surface) SetColor(hex string) error {
	if !hexColor.MatchString(hex) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	s.color = hex
	return nil
}

// SetBrushSize sets the stroke width, clamped to the slider range.
func (s *Surface) SetBrushSize(px float64) {
	s.width = math.Max(MinBrushSize, math.Min(MaxBrushSize, px))
}

// BeginStroke starts a stroke at (x, y). Nothing is painted until the
// pointer moves.
func (s *Surface) BeginStroke(x, y float64) {
	s.drawing = true
	s.lastX, s.lastY = x, y
}

// MoveStroke extends the active stroke to (x, y). Without an active stroke
// it does nothing.
func (s *Surface) MoveStroke(x, y float64) error {
	if !s.drawing {
		return nil
	}
	x0, y0 := s.lastX, s.lastY
	s.lastX, s.lastY = x, y

	if s.tool == Eraser {
		return s.erase(x0, y0, x, y)
	}

	s.dc.SetHexColor(s.color)
	s.dc.SetLineWidth(s.width)
	s.dc.MoveTo(x0, y0)
	s.dc.LineTo(x, y)
	if err := s.dc.Stroke(); err != nil {
		return fmt.Errorf("canvas: stroke: %w", err)
	}
	return nil
}

// EndStroke finishes the active stroke. It returns true when a stroke was
// in progress, which is when a history snapshot should be taken.
func (s *Surface) EndStroke() bool {
	if !s.drawing {
		return false
	}
	s.drawing = false
	return true
}

// erase rasterizes the segment into the mask and removes that coverage
// from the surface, the equivalent of a destination-out composite.
func (s *Surface) erase(x0, y0, x1, y1 float64) error {
	if s.maskDC == nil {
		s.mask = gg.NewPixmap(s.Width(), s.Height())
		s.maskDC = gg.NewContext(s.Width(), s.Height(), gg.WithPixmap(s.mask))
		s.maskDC.SetLineCap(gg.LineCapRound)
		s.maskDC.SetLineJoin(gg.LineJoinRound)
	}

	s.maskDC.SetRGBA(0, 0, 0, 1)
	s.maskDC.SetLineWidth(s.width)
	s.maskDC.MoveTo(x0, y0)
	s.maskDC.LineTo(x1, y1)
	if err := s.maskDC.Stroke(); err != nil {
		return fmt.Errorf("canvas: erase: %w", err)
	}

	pad := s.width/2 + 2
	area := image.Rect(
		int(math.Floor(math.Min(x0, x1)-pad)),
		int(math.Floor(math.Min(y0, y1)-pad)),
		int(math.Ceil(math.Max(x0, x1)+pad)),
		int(math.Ceil(math.Max(y0, y1)+pad)),
	).Intersect(image.Rect(0, 0, s.Width(), s.Height()))

	dst := s.pm.Data()
	mask := s.mask.Data()
	stride := s.Width() * 4
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			i := y*stride + x*4
			coverage := uint32(mask[i+3])
			if coverage == 0 {
				continue
			}
			keep := 255 - coverage
			for c := 0; c < 4; c++ {
				dst[i+c] = uint8((uint32(dst[i+c])*keep + 127) / 255)
			}
			mask[i], mask[i+1], mask[i+2], mask[i+3] = 0, 0, 0, 0
		}
	}
	return nil
}

// Clear fills the whole surface with white and cancels any active stroke.
func (s *Surface) Clear() {
	s.pm.Clear(gg.White)
	s.drawing = false
}

// Image returns a copy of the current pixels.
func (s *Surface) Image() *image.RGBA {
	return s.pm.ToImage()
}

// Snapshot encodes the surface as PNG.
func (s *Surface) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG writes the surface as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, s.Image()); err != nil {
		return fmt.Errorf("canvas: encode png: %w", err)
	}
	return nil
}

// DataURL returns the surface as a base64 PNG data URL.
func (s *Surface) DataURL() (string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(snap), nil
}

// Restore replaces the surface content with a snapshot taken by Snapshot.
// Transparent pixels stay transparent. A snapshot of another size resizes
// the surface to match.
func (s *Surface) Restore(snapshot []byte) error {
	img, err := png.Decode(bytes.NewReader(snapshot))
	if err != nil {
		return fmt.Errorf("canvas: decode snapshot: %w", err)
	}
	return s.Load(img)
}

// Load replaces the surface content with img, adopting its size.
func (s *Surface) Load(img image.Image) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrInvalidSize
	}
	if b.Dx() != s.Width() || b.Dy() != s.Height() {
		s.allocate(b.Dx(), b.Dy())
	}

	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	copy(s.pm.Data(), rgba.Pix)
	s.drawing = false
	return nil
}

// Resize changes the surface size, scaling the current drawing onto a
// fresh white sheet.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if width == s.Width() && height == s.Height() {
		return nil
	}

	old := s.Image()
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(scaled, scaled.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), old, old.Bounds(), xdraw.Over, nil)

	s.allocate(width, height)
	copy(s.pm.Data(), scaled.Pix)
	s.drawing = false
	return nil
}

// ViewportSize picks the surface size for a container: landscape up to
// 800×600 on desktop, portrait 1:1.4 up to 350 wide on mobile.
func ViewportSize(containerW, containerH int, mobile bool) (int, int) {
	if mobile {
		w := min(350, containerW-20)
		if w < 1 {
			w = 1
		}
		return w, w * 7 / 5
	}
	w := min(DefaultWidth, containerW-40)
	h := min(DefaultHeight, containerH-40)
	return max(w, 1), max(h, 1)
}

// ExportFilename names a saved artwork after the UTC time it was saved.
func ExportFilename(t time.Time) string {
	return "artwork-" + t.UTC().Format("2006-01-02T15-04-05") + ".png"
}

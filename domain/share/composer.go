// Package share renders the 1200×630 image used when posting an artwork
// together with its analysis.
package share

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
)

// Canvas size of the share image, the common link-preview format.
const (
	Width  = 1200
	Height = 630
)

// Layout holds every position, size and color of the share image.
type Layout struct {
	GradientStops [3]string

	OuterFrame, InnerFrame           Rect
	OuterFrameWidth, InnerFrameWidth float64
	OuterFrameColor, InnerFrameColor string

	AppTitleX, AppTitleY float64
	AppTitleSize         float64
	AppTitleColor        string

	Artwork      Rect
	MatColors    [3]string
	MatInsets    [3]float64
	ArtworkMatBg string

	TextX, TextY, TextWidth float64
	TitleSize, TitleAdvance float64
	TitleColor              string
	BodyGap                 float64
	BodySize, BodyAdvance   float64
	BodyColor               string
	MaxBodyLines            int

	HashtagY    float64
	HashtagSize float64
}

// DefaultLayout is the wooden-frame design of the studio.
func DefaultLayout() Layout {
	return Layout{
		GradientStops: [3]string{"#F5DEB3", "#DEB887", "#CD853F"},

		OuterFrame:      Rect{X: 20, Y: 20, W: 1160, H: 590},
		OuterFrameWidth: 8,
		OuterFrameColor: "#8B4513",
		InnerFrame:      Rect{X: 40, Y: 40, W: 1120, H: 550},
		InnerFrameWidth: 4,
		InnerFrameColor: "#A0522D",

		AppTitleX:     600,
		AppTitleY:     80,
		AppTitleSize:  32,
		AppTitleColor: "#8B4513",

		Artwork:      Rect{X: 80, Y: 120, W: 400, H: 300},
		MatColors:    [3]string{"#8B4513", "#A0522D", "#CD853F"},
		MatInsets:    [3]float64{15, 10, 5},
		ArtworkMatBg: "#FFFFFF",

		TextX:        520,
		TextY:        140,
		TextWidth:    620,
		TitleSize:    28,
		TitleAdvance: 36,
		TitleColor:   "#8B4513",
		BodyGap:      15,
		BodySize:     18,
		BodyAdvance:  28,
		BodyColor:    "#654321",
		MaxBodyLines: 12,

		HashtagY:    580,
		HashtagSize: 18,
	}
}

// Fonts are the two weights used on the share image.
type Fonts struct {
	Regular *text.FontSource
	Bold    *text.FontSource

	// Embedded is set when no font file was given. Japanese titles and
	// hashtags then render as missing-glyph boxes.
	Embedded bool
}

// LoadFonts reads TTF/OTF files for the regular and bold weights. An empty
// path selects the embedded Go font, which has no Japanese glyphs; set a
// CJK font for Japanese text to render.
func LoadFonts(regularPath, boldPath string) (*Fonts, error) {
	regular, err := loadSource(regularPath, goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load regular font: %w", err)
	}
	if boldPath == "" {
		boldPath = regularPath
	}
	var bold *text.FontSource
	if boldPath == "" {
		bold, err = text.NewFontSource(gobold.TTF)
	} else {
		bold, err = text.NewFontSourceFromFile(boldPath)
	}
	if err != nil {
		_ = regular.Close()
		return nil, fmt.Errorf("load bold font: %w", err)
	}
	return &Fonts{Regular: regular, Bold: bold, Embedded: regularPath == ""}, nil
}

func loadSource(path string, fallback []byte) (*text.FontSource, error) {
	if path == "" {
		return text.NewFontSource(fallback)
	}
	return text.NewFontSourceFromFile(path)
}

// Close releases both font sources.
func (f *Fonts) Close() error {
	return errors.Join(f.Regular.Close(), f.Bold.Close())
}

// Composer draws share images. It holds no per-image state and may be
// used from several goroutines.
type Composer struct {
	fonts  *Fonts
	layout Layout
}

// NewComposer creates a composer with the default layout.
func NewComposer(fonts *Fonts) *Composer {
	return &Composer{fonts: fonts, layout: DefaultLayout()}
}

// Layout returns the layout in use.
func (c *Composer) Layout() Layout { return c.layout }

// Compose draws the artwork and its analysis onto a new share image. The
// body is wrapped to the text column and cut after MaxBodyLines lines.
func (c *Composer) Compose(artwork image.Image, title, body string) (*image.RGBA, error) {
	if artwork == nil {
		return nil, errors.New("share: artwork is nil")
	}
	b := artwork.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("share: artwork is empty")
	}

	l := c.layout
	dc := gg.NewContext(Width, Height)
	defer dc.Close()

	bg := gg.NewLinearGradientBrush(0, 0, Width, Height).
		AddColorStop(0, gg.Hex(l.GradientStops[0])).
		AddColorStop(0.5, gg.Hex(l.GradientStops[1])).
		AddColorStop(1, gg.Hex(l.GradientStops[2]))
	dc.SetFillBrush(bg)
	dc.DrawRectangle(0, 0, Width, Height)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("share: background: %w", err)
	}

	if err := strokeRect(dc, l.OuterFrame, l.OuterFrameWidth, l.OuterFrameColor); err != nil {
		return nil, err
	}
	if err := strokeRect(dc, l.InnerFrame, l.InnerFrameWidth, l.InnerFrameColor); err != nil {
		return nil, err
	}

	bold := c.fonts.Bold
	regular := c.fonts.Regular

	dc.SetHexColor(l.AppTitleColor)
	dc.SetFont(bold.Face(l.AppTitleSize))
	dc.DrawStringAnchored(analysis.AppName, l.AppTitleX, l.AppTitleY, 0.5, 0)

	if err := c.drawArtwork(dc, artwork); err != nil {
		return nil, err
	}

	y := l.TextY
	titleFace := bold.Face(l.TitleSize)
	dc.SetHexColor(l.TitleColor)
	dc.SetFont(titleFace)
	for _, line := range Wrap(title, l.TextWidth, FaceMeasurer{Face: titleFace}) {
		dc.DrawString(line, l.TextX, y)
		y += l.TitleAdvance
	}

	y += l.BodyGap
	bodyFace := regular.Face(l.BodySize)
	dc.SetHexColor(l.BodyColor)
	dc.SetFont(bodyFace)
	for _, line := range BodyLines(body, l.TextWidth, l.MaxBodyLines, FaceMeasurer{Face: bodyFace}) {
		dc.DrawString(line, l.TextX, y)
		y += l.BodyAdvance
	}

	dc.SetHexColor(l.TitleColor)
	dc.SetFont(bold.Face(l.HashtagSize))
	dc.DrawString(analysis.Hashtags, l.TextX, l.HashtagY)

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, errors.New("share: unexpected image type")
	}
	return img, nil
}

// ComposePNG composes the share image and writes it as PNG.
func (c *Composer) ComposePNG(w io.Writer, artwork image.Image, title, body string) error {
	img, err := c.Compose(artwork, title, body)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// BodyLines wraps body and keeps at most maxLines lines.
func BodyLines(body string, maxWidth float64, maxLines int, m Measurer) []string {
	lines := Wrap(body, maxWidth, m)
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func (c *Composer) drawArtwork(dc *gg.Context, artwork image.Image) error {
	l := c.layout
	a := l.Artwork

	for i, inset := range l.MatInsets {
		dc.SetHexColor(l.MatColors[i])
		dc.DrawRectangle(a.X-inset, a.Y-inset, a.W+2*inset, a.H+2*inset)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("share: frame: %w", err)
		}
	}
	dc.SetHexColor(l.ArtworkMatBg)
	dc.DrawRectangle(a.X, a.Y, a.W, a.H)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("share: mat: %w", err)
	}

	b := artwork.Bounds()
	fit := Fit(float64(b.Dx()), float64(b.Dy()), a.W, a.H)
	dc.DrawImageEx(gg.ImageBufFromImage(artwork), gg.DrawImageOptions{
		X:             a.X + fit.X,
		Y:             a.Y + fit.Y,
		DstWidth:      fit.W,
		DstHeight:     fit.H,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
	})
	return nil
}

func strokeRect(dc *gg.Context, r Rect, width float64, color string) error {
	dc.SetHexColor(color)
	dc.SetLineWidth(width)
	dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("share: frame: %w", err)
	}
	return nil
}

package share

import (
	"strings"
	"unicode"

	"github.com/gogpu/gg/text"
	"golang.org/x/text/unicode/norm"
)

// Measurer reports the rendered width of a string in pixels.
type Measurer interface {
	Measure(s string) float64
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(s string) float64

func (f MeasureFunc) Measure(s string) float64 { return f(s) }

// FaceMeasurer measures with a font face.
type FaceMeasurer struct {
	Face text.Face
}

func (m FaceMeasurer) Measure(s string) float64 {
	return m.Face.Advance(s)
}

const zeroWidthJoiner = '\u200d'

// Wrap breaks s into lines no wider than maxWidth. Text is split between
// characters rather than words, which suits Japanese; each character keeps
// its combining marks. A newline always ends the current line and blank
// lines are kept. A single character wider than maxWidth gets a line of
// its own.
func Wrap(s string, maxWidth float64, m Measurer) []string {
	s = norm.NFC.String(strings.ReplaceAll(s, "\r\n", "\n"))

	var lines []string
	var current strings.Builder

	for _, ch := range clusters(s) {
		if ch == "\n" {
			lines = append(lines, current.String())
			current.Reset()
			continue
		}

		candidate := current.String() + ch
		if current.Len() > 0 && m.Measure(candidate) > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(ch)
			continue
		}
		current.Reset()
		current.WriteString(candidate)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// clusters splits s into user-perceived characters: a base rune followed
// by its combining marks, variation selectors and zero-width-joined runes.
func clusters(s string) []string {
	var out []string
	var cur []rune
	joinNext := false

	for _, r := range s {
		attach := len(cur) > 0 && r != '\n' &&
			(joinNext || unicode.In(r, unicode.Mn, unicode.Me) || r == zeroWidthJoiner || unicode.Is(unicode.Variation_Selector, r))
		if !attach && len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
		joinNext = r == zeroWidthJoiner
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

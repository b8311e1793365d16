// Package analysis models the text returned for an artwork and the ways it
// is shared.
package analysis

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// AppName is the product name shown on share images and posts.
	AppName = "🎨 アトリエ マエストロ"

	// Hashtags are appended to every shared post and share image.
	Hashtags = "#アトリエマエストロ #AI絵画解析 #デジタルアート"

	// AppURL is the public address linked from shared posts.
	AppURL = "https://ateliermaestro-painting-ai.vercel.app"

	// IntentEndpoint is the X (Twitter) web intent for composing a post.
	IntentEndpoint = "https://twitter.com/intent/tweet"

	// ShareExcerptRunes is how much of the body a shared post quotes.
	ShareExcerptRunes = 100
)

// Result is an analysis split into its title line and body.
type Result struct {
	Title string
	Body  string
	Raw   string
}

// Parse splits provider text at the first line break. The first line is
// the title; everything after it is the body. Text without a line break is
// all title.
func Parse(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	title, body, _ := strings.Cut(text, "\n")
	return Result{
		Title: title,
		Body:  body,
		Raw:   text,
	}
}

// Excerpt returns at most n runes of the body.
func (r Result) Excerpt(n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(r.Body) <= n {
		return r.Body
	}
	runes := []rune(r.Body)
	return string(runes[:n])
}

// ShareText is the prefilled text of a post announcing the artwork.
func (r Result) ShareText() string {
	var sb strings.Builder
	sb.WriteString(AppName)
	sb.WriteString("で作品を描きました！\n\n「")
	sb.WriteString(r.Title)
	sb.WriteString("」\n\n")
	sb.WriteString(r.Excerpt(ShareExcerptRunes))
	sb.WriteString("...\n\n")
	sb.WriteString(Hashtags)
	sb.WriteString("\n\n")
	sb.WriteString(AppURL)
	return sb.String()
}

// IntentURL returns a link that opens the post composer with ShareText.
func (r Result) IntentURL() string {
	escaped := strings.ReplaceAll(url.QueryEscape(r.ShareText()), "+", "%20")
	return IntentEndpoint + "?text=" + escaped
}

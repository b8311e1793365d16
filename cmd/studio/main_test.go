package main

import (
	"bytes"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofumi529/Little-Artists-Studio/interfaces/client"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeArtwork(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	path := filepath.Join(dir, "art.png")
	require.NoError(t, writePNG(path, img))
	return path
}

func TestDrawCommand_Viewport(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "strokes.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(testScript), 0o644))

	tests := []struct {
		name         string
		args         []string
		wantW, wantH int
	}{
		{"mobile portrait", []string{"--viewport", "390x700", "--mobile"}, 350, 490},
		{"desktop", []string{"--viewport", "700x500"}, 660, 460},
		{"explicit width wins", []string{"--viewport", "700x500", "--width", "300"}, 300, 460},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outPath := filepath.Join(t.TempDir(), "art.png")
			args := append([]string{"draw", "--script", scriptPath, "--out", outPath, "--db", filepath.Join(dir, "studio.db")}, tt.args...)
			_, _, err := run(t, args...)
			require.NoError(t, err)

			img, err := readPNG(outPath)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}

	t.Run("Should reject a malformed viewport", func(t *testing.T) {
		_, _, err := run(t, "draw", "--script", scriptPath, "--viewport", "wide", "--db", filepath.Join(dir, "studio.db"))
		assert.EqualError(t, err, `viewport "wide": want WIDTHxHEIGHT`)
	})
}

func TestAnalyzeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"analysis":"【あかいそら】\nとてもきれいだね！"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	art := writeArtwork(t, dir, 120, 90)
	previewPath := filepath.Join(dir, "preview.png")
	sharePath := filepath.Join(dir, "share.png")

	stdout, stderr, err := run(t, "analyze", art,
		"--relay", srv.URL,
		"--db", filepath.Join(dir, "studio.db"),
		"--font", "",
		"--preview", previewPath,
		"--share", sharePath,
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "【あかいそら】")
	assert.Contains(t, stdout, "1/5")
	assert.Contains(t, stderr, "FONT_PATH")

	preview, err := readPNG(previewPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 300), preview.Bounds())
	r, _, _, _ := preview.At(200, 150).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	card, err := readPNG(sharePath)
	require.NoError(t, err)
	assert.Equal(t, 1200, card.Bounds().Dx())
}

func TestComposeCommand_FontWarning(t *testing.T) {
	dir := t.TempDir()
	art := writeArtwork(t, dir, 40, 30)

	_, stderr, err := run(t, "compose", art, "--font", "", "--title", "【そら】", "-o", filepath.Join(dir, "share.png"))

	require.NoError(t, err)
	assert.Contains(t, stderr, "CJK font")
}

func TestRenderAnalyzeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"rate limited", &client.RelayError{Status: http.StatusTooManyRequests, Message: "API利用制限に達しました。"}, true},
		{"circuit open", &client.RelayError{Status: http.StatusServiceUnavailable, Message: "x"}, true},
		{"bad key", &client.RelayError{Status: http.StatusUnauthorized, Message: "x", Debug: "Invalid API key - Key length: 12"}, false},
		{"unreachable", &client.TransportError{Message: client.MsgConnection}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := renderAnalyzeError(&out, tt.err)
			assert.Equal(t, tt.err, err)
			if tt.wantRetry {
				assert.Contains(t, out.String(), msgRetryLater)
			} else {
				assert.NotContains(t, out.String(), msgRetryLater)
			}
		})
	}
}

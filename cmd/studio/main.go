package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/application/studio"
	"github.com/ofumi529/Little-Artists-Studio/domain/canvas"
	"github.com/ofumi529/Little-Artists-Studio/domain/share"
	"github.com/ofumi529/Little-Artists-Studio/domain/usage"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/storage"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/client"
)

var timeNow = time.Now

const msgRetryLater = "少し時間をおいてから、もう一度お試しください。"

type globalFlags struct {
	dbPath   string
	fontPath string
	boldPath string
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, Hot.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "studio",
		Short:         "Little Artists Studio drawing tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.dbPath, "db", storage.DefaultPath(), "usage database path")
	root.PersistentFlags().StringVar(&g.fontPath, "font", os.Getenv("FONT_PATH"), "TTF/OTF font for share images")
	root.PersistentFlags().StringVar(&g.boldPath, "bold-font", os.Getenv("BOLD_FONT_PATH"), "bold TTF/OTF font for share images")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newDrawCmd(g))
	root.AddCommand(newAnalyzeCmd(g))
	root.AddCommand(newUsageCmd(g))
	root.AddCommand(newComposeCmd(g))
	return root
}

func (g *globalFlags) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (g *globalFlags) limiter() (*usage.Limiter, io.Closer, error) {
	store, err := storage.NewSQLiteStore(g.dbPath)
	if err != nil {
		return nil, nil, err
	}
	return usage.NewLimiter(store), store, nil
}

// fonts loads the share image fonts and warns when Japanese text has no
// glyphs to render with.
func (g *globalFlags) fonts(cmd *cobra.Command) (*share.Fonts, error) {
	fonts, err := share.LoadFonts(g.fontPath, g.boldPath)
	if err != nil {
		return nil, err
	}
	if fonts.Embedded {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), Hint.Render(
			"no --font or FONT_PATH set: Japanese text will render as boxes, point it at a CJK font such as Noto Sans JP"))
	}
	return fonts, nil
}

func newDrawCmd(g *globalFlags) *cobra.Command {
	var scriptPath, outPath, viewport string
	var width, height int
	var mobile bool

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Replay a stroke script and save the drawing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := loadScript(scriptPath)
			if err != nil {
				return err
			}
			if viewport != "" {
				cw, ch, err := parseViewport(viewport)
				if err != nil {
					return err
				}
				script.Width, script.Height = canvas.ViewportSize(cw, ch, mobile)
			}
			if width > 0 {
				script.Width = width
			}
			if height > 0 {
				script.Height = height
			}

			surface, err := canvas.NewSurface(script.Width, script.Height)
			if err != nil {
				return err
			}
			defer surface.Close()

			session, err := studio.NewSession(surface, nil, nil, nil, studio.WithLogger(g.logger()))
			if err != nil {
				return err
			}
			state, err := replay(session, script)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = canvas.ExportFilename(timeNow())
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if _, err := session.Save(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Frame.Render(
				Title.Render("🎨 "+filepath.Base(outPath))+"\n"+
					Muted.Render(fmt.Sprintf("%d×%d  ops=%d  undo=%t redo=%t",
						state.Width, state.Height, len(script.Ops), state.CanUndo, state.CanRedo)),
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML stroke script")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output PNG (default artwork-<timestamp>.png)")
	cmd.Flags().IntVar(&width, "width", 0, "canvas width (overrides the script)")
	cmd.Flags().IntVar(&height, "height", 0, "canvas height (overrides the script)")
	cmd.Flags().StringVar(&viewport, "viewport", "", "size the canvas for a WxH container, like the browser does")
	cmd.Flags().BoolVar(&mobile, "mobile", false, "use the portrait mobile layout with --viewport")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var relayURL, sharePath, previewPath string

	cmd := &cobra.Command{
		Use:   "analyze <artwork.png>",
		Short: "Ask the relay for a title and praise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			logger := g.logger()

			img, err := readPNG(args[0])
			if err != nil {
				return err
			}
			b := img.Bounds()
			surface, err := canvas.NewSurface(b.Dx(), b.Dy())
			if err != nil {
				return err
			}
			defer surface.Close()
			if err := surface.Load(img); err != nil {
				return err
			}

			limiter, store, err := g.limiter()
			if err != nil {
				return err
			}
			defer store.Close()

			var composer studio.ShareComposer
			if sharePath != "" {
				fonts, err := g.fonts(cmd)
				if err != nil {
					return err
				}
				defer fonts.Close()
				composer = share.NewComposer(fonts)
			}

			session, err := studio.NewSession(surface, limiter,
				client.New(relayURL, client.WithLogger(logger)),
				composer,
				studio.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			out, err := session.OnAnalyzeRequested(ctx)
			if err != nil {
				return renderAnalyzeError(cmd.OutOrStdout(), err)
			}

			if out.ShareImage != nil {
				if err := writePNG(sharePath, out.ShareImage); err != nil {
					return err
				}
			}
			if previewPath != "" {
				preview := share.Preview(surface.Image(), share.PreviewWidth, share.PreviewHeight)
				if err := writePNG(previewPath, preview); err != nil {
					return err
				}
			}

			lines := []string{
				Title.Render(out.Result.Title),
				Body.Render(out.Result.Body),
				"",
				Muted.Render(fmt.Sprintf("🎆 今日の利用回数: %d/%d回 ・ 残り: %d回",
					out.Usage.UsedToday, out.Usage.Limit, out.Usage.Remaining)),
			}
			if out.ShareImage != nil {
				lines = append(lines, Muted.Render("share image: "+sharePath))
			}
			if previewPath != "" {
				lines = append(lines, Muted.Render("framed preview: "+previewPath))
			}
			lines = append(lines, Muted.Render(out.ShareURL))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Frame.Render(strings.Join(lines, "\n")))
			return nil
		},
	}
	cmd.Flags().StringVar(&relayURL, "relay", envOr("RELAY_URL", client.DefaultBaseURL), "relay base URL")
	cmd.Flags().StringVar(&sharePath, "share", "", "write the 1200×630 share image here")
	cmd.Flags().StringVar(&previewPath, "preview", "", "write the 400×300 framed artwork preview here")
	return cmd
}

func renderAnalyzeError(w io.Writer, err error) error {
	var limitErr *studio.LimitReachedError
	var relayErr *client.RelayError
	var transportErr *client.TransportError

	switch {
	case errors.As(err, &limitErr):
		_, _ = fmt.Fprintln(w, ErrorFrame.Render(strings.Join([]string{
			Hot.Render("✨ 今日の利用上限に達しました"),
			Body.Render(fmt.Sprintf("アート解析機能は1日に%d回までご利用いただけます。", limitErr.Status.Limit)),
			Body.Render("明日またお試しください。"),
			Muted.Render(fmt.Sprintf("今日の利用回数: %d/%d回", limitErr.Status.UsedToday, limitErr.Status.Limit)),
		}, "\n")))
	case errors.As(err, &relayErr):
		lines := []string{Hot.Render("エラー"), Body.Render(relayErr.Message)}
		if relayErr.Debug != "" {
			lines = append(lines, Muted.Render("debug: "+relayErr.Debug))
		}
		if relayErr.Temporary() {
			lines = append(lines, Hint.Render(msgRetryLater))
		}
		_, _ = fmt.Fprintln(w, ErrorFrame.Render(strings.Join(lines, "\n")))
	case errors.As(err, &transportErr):
		_, _ = fmt.Fprintln(w, ErrorFrame.Render(strings.Join([]string{
			Hot.Render("通信エラー"),
			Body.Render(transportErr.Message),
			Hint.Render(msgRetryLater),
		}, "\n")))
	}
	return err
}

func newUsageCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's analysis usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limiter, store, err := g.limiter()
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := limiter.CheckLimit(cmd.Context())
			if err != nil {
				return err
			}
			style := Body
			if !st.Allowed {
				style = Hot
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), style.Render(
				fmt.Sprintf("今日の利用回数: %d/%d回 ・ 残り: %d回", st.UsedToday, st.Limit, st.Remaining)))
			return nil
		},
	}
}

func newComposeCmd(g *globalFlags) *cobra.Command {
	var title, body, outPath string

	cmd := &cobra.Command{
		Use:   "compose <artwork.png>",
		Short: "Render a share image from an artwork and its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readPNG(args[0])
			if err != nil {
				return err
			}
			fonts, err := g.fonts(cmd)
			if err != nil {
				return err
			}
			defer fonts.Close()

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := share.NewComposer(fonts).ComposePNG(f, img, title, body); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Muted.Render("wrote "+outPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title line")
	cmd.Flags().StringVar(&body, "body", "", "analysis body")
	cmd.Flags().StringVarP(&outPath, "out", "o", "share.png", "output PNG")
	return cmd
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseViewport(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("viewport %q: want WIDTHxHEIGHT", s)
	}
	return w, h, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Package studio drives one drawing session: strokes, tools, undo/redo,
// export and the limited AI analysis of the finished picture.
package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/domain/canvas"
	"github.com/ofumi529/Little-Artists-Studio/domain/history"
	"github.com/ofumi529/Little-Artists-Studio/domain/usage"
)

// ErrDailyLimitReached is matched by LimitReachedError.
var ErrDailyLimitReached = errors.New("daily analysis limit reached")

// LimitReachedError carries the usage that blocked an analysis.
type LimitReachedError struct {
	Status usage.Status
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s: %d/%d used today", ErrDailyLimitReached, e.Status.UsedToday, e.Status.Limit)
}

func (e *LimitReachedError) Is(target error) bool { return target == ErrDailyLimitReached }

// Analyzer sends a drawing to the relay.
type Analyzer interface {
	Analyze(ctx context.Context, dataURL string) (analysis.Result, error)
}

// ShareComposer renders the shareable card.
type ShareComposer interface {
	Compose(artwork image.Image, title, body string) (*image.RGBA, error)
}

// State is what the toolbar needs to render after a command.
type State struct {
	Tool      canvas.Tool
	Color     string
	BrushSize float64
	Drawing   bool
	CanUndo   bool
	CanRedo   bool
	Width     int
	Height    int
}

// AnalysisOutcome is a successful analysis with everything needed to show
// and share it.
type AnalysisOutcome struct {
	Result     analysis.Result
	Usage      usage.Status
	ShareImage *image.RGBA
	ShareURL   string
}

// Session owns a surface and its history. It is not safe for concurrent
// use.
type Session struct {
	surface  *canvas.Surface
	history  *history.History[[]byte]
	limiter  *usage.Limiter
	analyzer Analyzer
	composer ShareComposer
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces time.Now for export names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithHistoryCapacity bounds the number of snapshots kept.
func WithHistoryCapacity(n int) Option {
	return func(s *Session) { s.history = history.New(s.history.Current(), n) }
}

// NewSession starts a session on surface, recording its current content
// as the first history entry. composer may be nil, in which case no share
// image is produced.
func NewSession(surface *canvas.Surface, limiter *usage.Limiter, analyzer Analyzer, composer ShareComposer, opts ...Option) (*Session, error) {
	initial, err := surface.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	s := &Session{
		surface:  surface,
		history:  history.New(initial, history.DefaultCapacity),
		limiter:  limiter,
		analyzer: analyzer,
		composer: composer,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State reports the current toolbar state.
func (s *Session) State() State {
	return State{
		Tool:      s.surface.Tool(),
		Color:     s.surface.Color(),
		BrushSize: s.surface.BrushSize(),
		Drawing:   s.surface.Drawing(),
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
		Width:     s.surface.Width(),
		Height:    s.surface.Height(),
	}
}

// Surface exposes the underlying surface.
func (s *Session) Surface() *canvas.Surface { return s.surface }

func (s *Session) OnStrokeStart(x, y float64) State {
	s.surface.BeginStroke(x, y)
	return s.State()
}

func (s *Session) OnStrokeMove(x, y float64) (State, error) {
	if err := s.surface.MoveStroke(x, y); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// OnStrokeEnd finishes the stroke and records a snapshot if one was active.
func (s *Session) OnStrokeEnd() (State, error) {
	if s.surface.EndStroke() {
		if err := s.record(); err != nil {
			return s.State(), err
		}
	}
	return s.State(), nil
}

func (s *Session) SelectTool(t canvas.Tool) (State, error) {
	err := s.surface.SetTool(t)
	return s.State(), err
}

func (s *Session) SelectColor(hex string) (State, error) {
	err := s.surface.SetColor(hex)
	return s.State(), err
}

func (s *Session) SetBrushSize(px float64) State {
	s.surface.SetBrushSize(px)
	return s.State()
}

// Undo restores the previous snapshot. At the oldest entry it does nothing.
func (s *Session) Undo() (State, error) {
	snap, ok := s.history.Undo()
	if !ok {
		return s.State(), nil
	}
	if err := s.surface.Restore(snap); err != nil {
		return s.State(), fmt.Errorf("undo: %w", err)
	}
	return s.State(), nil
}

// Redo reapplies the next snapshot. At the newest entry it does nothing.
func (s *Session) Redo() (State, error) {
	snap, ok := s.history.Redo()
	if !ok {
		return s.State(), nil
	}
	if err := s.surface.Restore(snap); err != nil {
		return s.State(), fmt.Errorf("redo: %w", err)
	}
	return s.State(), nil
}

// Clear whitens the sheet and records it, so a clear can be undone.
func (s *Session) Clear() (State, error) {
	s.surface.Clear()
	if err := s.record(); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// Resize rescales the drawing. History is left as it is.
func (s *Session) Resize(width, height int) (State, error) {
	err := s.surface.Resize(width, height)
	return s.State(), err
}

// Save writes the drawing as PNG and returns the suggested file name.
func (s *Session) Save(w io.Writer) (string, error) {
	if err := s.surface.EncodePNG(w); err != nil {
		return "", err
	}
	return canvas.ExportFilename(s.now()), nil
}

// OnAnalyzeRequested checks the daily allowance, sends the drawing for
// analysis and, on success, counts the use and prepares the share card.
// Failed analyses are not counted. A use that cannot be stored is logged
// and the analysis is still returned.
func (s *Session) OnAnalyzeRequested(ctx context.Context) (*AnalysisOutcome, error) {
	st, err := s.limiter.CheckLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("check usage: %w", err)
	}
	if !st.Allowed {
		return nil, &LimitReachedError{Status: st}
	}

	dataURL, err := s.surface.DataURL()
	if err != nil {
		return nil, fmt.Errorf("encode drawing: %w", err)
	}

	result, err := s.analyzer.Analyze(ctx, dataURL)
	if err != nil {
		s.logger.Warn("Analysis failed", zap.Error(err))
		return nil, err
	}

	if used, err := s.limiter.Increment(ctx); err != nil {
		s.logger.Warn("Usage not recorded", zap.Error(err))
		st = countedLocally(st)
	} else {
		st = used
	}

	out := &AnalysisOutcome{
		Result:   result,
		Usage:    st,
		ShareURL: result.IntentURL(),
	}
	if s.composer != nil {
		img, err := s.composer.Compose(s.surface.Image(), result.Title, result.Body)
		if err != nil {
			s.logger.Warn("Share image not composed", zap.Error(err))
		} else {
			out.ShareImage = img
		}
	}

	s.logger.Info("Analysis completed",
		zap.String("title", result.Title),
		zap.Int("used_today", st.UsedToday),
		zap.Int("remaining", st.Remaining),
	)
	return out, nil
}

// countedLocally is st with one more use, for when the store rejected it.
func countedLocally(st usage.Status) usage.Status {
	st.UsedToday++
	st.Remaining = max(st.Limit-st.UsedToday, 0)
	st.Allowed = st.UsedToday < st.Limit
	return st
}

func (s *Session) record() error {
	snap, err := s.surface.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	s.history.Record(snap)
	return nil
}

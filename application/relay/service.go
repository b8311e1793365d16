// Package relay forwards a drawing to the vision provider and reshapes the
// answer for the browser.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/observability"
	appErrors "github.com/ofumi529/Little-Artists-Studio/pkg/errors"
	"github.com/ofumi529/Little-Artists-Studio/pkg/utils"
)

// DefaultPrompt asks for a child-friendly title line followed by warm praise.
const DefaultPrompt = "この絵に、子どもがよろこぶようなタイトルを付けてから、心からほめてください。\n\n" +
	"形式：\n" +
	"1行目：「【タイトル】」（例：【にじのお城】、【おはなのひまわり】など）\n" +
	"2行目以降：ほめ言葉\n\n" +
	"条件：\n" +
	"- 小学校３年生までの漢字だけ使用\n" +
	"- タイトルは子どもがよろこぶような、かわいい名前\n" +
	"- ほめ言葉は「すごいね！」から始めて、色やかたち、線のかきかたなどいいところをほめる\n" +
	"- 最後に「これからもがんばってね！」で終わる\n" +
	"- 全体で150文字くらいのあたたかいメッセージ"

// Messages shown to the user.
const (
	MsgNotConfigured  = "AI解析サービスの設定が完了していません。管理者にお問い合わせください。"
	MsgMisconfigured  = "AI解析サービスの設定に問題があります。管理者にお問い合わせください。"
	MsgMissingImage   = "画像データが提供されていません。"
	MsgNetwork        = "ネットワーク接続エラーです。しばらくしてから再度お試しください。"
	MsgInvalidKey     = "Claude APIキーが無効です。管理者にお問い合わせください。"
	MsgRateLimited    = "API利用制限に達しました。しばらく待ってから再試行してください。"
	MsgUnavailable    = "AI解析サービスが混み合っています。しばらくしてから再度お試しください。"
	MsgAnalysisFailed = "アート解析中にエラーが発生しました。しばらくしてから再度お試しください。"
)

const defaultMediaType = "image/png"

// Settings are the parts of the relay that can change at runtime.
type Settings struct {
	APIKey    string
	KeyPrefix string
	Model     string
	MaxTokens int
	Prompt    string
}

// AnalyzeCommand is the decoded request body.
type AnalyzeCommand struct {
	ImageData string `json:"imageData" validate:"required"`
}

// AnalyzeResult is the success body.
type AnalyzeResult struct {
	Analysis string `json:"analysis"`
}

// Service validates requests and calls the provider. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	settings Settings

	provider analysis.Provider
	logger   *zap.Logger
	metrics  *observability.Collector
}

// NewService creates a relay. metrics may be nil.
func NewService(settings Settings, provider analysis.Provider, logger *zap.Logger, metrics *observability.Collector) *Service {
	return &Service{
		settings: normalize(settings),
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}
}

func normalize(s Settings) Settings {
	if strings.TrimSpace(s.Prompt) == "" {
		s.Prompt = DefaultPrompt
	}
	return s
}

// UpdateSettings swaps the settings used by subsequent requests.
func (s *Service) UpdateSettings(settings Settings) {
	settings = normalize(settings)
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.logger.Info("Relay settings updated",
		zap.String("model", settings.Model),
		zap.Int("max_tokens", settings.MaxTokens),
		zap.Int("api_key_length", len(settings.APIKey)),
	)
}

// Settings returns the current settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Ready reports whether a credential of the expected shape is configured.
func (s *Service) Ready() bool {
	st := s.Settings()
	return st.APIKey != "" && strings.HasPrefix(st.APIKey, st.KeyPrefix)
}

// Analyze checks the deployment and the request, then makes exactly one
// provider call. Every failure is an *errors.AppError.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalyzeResult, error) {
	st := s.Settings()

	if st.APIKey == "" {
		s.record(observability.OutcomeConfiguration)
		return nil, appErrors.NewConfigurationError(MsgNotConfigured).WithDebug("ANTHROPIC_API_KEY not set")
	}
	if !strings.HasPrefix(st.APIKey, st.KeyPrefix) {
		s.record(observability.OutcomeConfiguration)
		return nil, appErrors.NewConfigurationError(MsgMisconfigured).WithDebug("Invalid API key format")
	}
	if err := utils.ValidateStruct(cmd); err != nil {
		s.record(observability.OutcomeValidation)
		return nil, appErrors.NewValidationError(MsgMissingImage).WithDebug(err.Error())
	}

	mediaType, data := SplitDataURL(cmd.ImageData)
	if data == "" {
		s.record(observability.OutcomeValidation)
		return nil, appErrors.NewValidationError(MsgMissingImage).WithDebug("imageData is required")
	}

	s.logger.Debug("Forwarding artwork",
		zap.String("media_type", mediaType),
		zap.Int("image_bytes", len(data)),
		zap.Int("api_key_length", len(st.APIKey)),
	)

	text, err := s.provider.Analyze(ctx, analysis.Request{
		APIKey:    st.APIKey,
		Model:     st.Model,
		MaxTokens: st.MaxTokens,
		Prompt:    st.Prompt,
		MediaType: mediaType,
		Data:      data,
	})
	if err != nil {
		appErr, outcome := s.mapProviderError(err, len(st.APIKey))
		s.record(outcome)
		return nil, appErr
	}

	s.record(observability.OutcomeSuccess)
	return &AnalyzeResult{Analysis: text}, nil
}

func (s *Service) mapProviderError(err error, keyLen int) (*appErrors.AppError, string) {
	var netErr *analysis.NetworkError
	var statusErr *analysis.StatusError

	switch {
	case errors.As(err, &netErr):
		return appErrors.NewNetworkError(MsgNetwork, err).
			WithDebug("Network error: " + netErr.Code), observability.OutcomeNetwork
	case errors.Is(err, analysis.ErrCircuitOpen):
		return appErrors.NewUnavailableError(MsgUnavailable).
			WithDebug("Circuit breaker open").
			WithCause(err), observability.OutcomeUnavailable
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized:
		return appErrors.NewUnauthorizedError(MsgInvalidKey).
			WithDebug(fmt.Sprintf("Invalid API key - Key length: %d", keyLen)).
			WithCause(err), observability.OutcomeUnauthorized
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusTooManyRequests:
		return appErrors.NewRateLimitError(MsgRateLimited).
			WithDebug("Rate limit exceeded").
			WithCause(err), observability.OutcomeRateLimited
	case errors.As(err, &statusErr):
		return appErrors.NewExternalError(MsgAnalysisFailed, err).
			WithDebug("Upstream error: " + statusErr.Error()), observability.OutcomeUpstream
	default:
		return appErrors.NewExternalError(MsgAnalysisFailed, err).
			WithDebug(err.Error()), observability.OutcomeInternal
	}
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAnalysis(outcome)
	}
}

// SplitDataURL separates a base64 data URL into its media type and
// payload. Input without a data URL header is returned as a PNG payload.
func SplitDataURL(s string) (mediaType, data string) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return defaultMediaType, s
	}
	header, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return defaultMediaType, s
	}
	if header == "" {
		header = defaultMediaType
	}
	return header, payload
}

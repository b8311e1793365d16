package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/application/relay"
	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/config"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/observability"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/provider/anthropic"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/http/rest"
	appErrors "github.com/ofumi529/Little-Artists-Studio/pkg/errors"
)

const serviceName = "little-artists-relay"

func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = level
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment)), nil
}

// ProvideMetrics returns nil when metrics are disabled.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("studio")
}

// ProvideTracing installs the OTLP exporter when tracing is enabled. A
// broken collector endpoint is logged and does not stop startup.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) *observability.TracerProvider {
	if !cfg.EnableTracing {
		return nil
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
		return nil
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	return tp
}

// ProvideProvider builds the Anthropic client, behind a circuit breaker
// when configured.
func ProvideProvider(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) analysis.Provider {
	client := anthropic.NewClient(anthropic.Options{
		Endpoint: cfg.ProviderURL,
		Version:  cfg.APIVersion,
		Timeout:  cfg.ProviderTimeout,
	}, logger.Named("anthropic"), metrics)

	if !cfg.EnableCircuitBreaker {
		return client
	}
	return anthropic.NewBreaker(client, anthropic.DefaultCircuitBreakerConfig("anthropic"), logger, metrics)
}

func ProvideRelaySettings(cfg *config.Config) relay.Settings {
	return relay.Settings{
		APIKey:    cfg.AnthropicAPIKey,
		KeyPrefix: cfg.APIKeyPrefix,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Prompt:    cfg.AnalysisPrompt,
	}
}

func ProvideRelay(settings relay.Settings, provider analysis.Provider, logger *zap.Logger, metrics *observability.Collector) *relay.Service {
	return relay.NewService(settings, provider, logger.Named("relay"), metrics)
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

func ProvideRouter(
	cfg *config.Config,
	relayService *relay.Service,
	errorHandler *appErrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(relayService, errorHandler, metrics, logger, rest.Options{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.EnableMetrics,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})
}

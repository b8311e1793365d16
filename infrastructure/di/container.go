package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/application/relay"
	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/config"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/observability"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/http/rest"
	appErrors "github.com/ofumi529/Little-Artists-Studio/pkg/errors"
)

// Container holds all relay dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracing      *observability.TracerProvider
	Provider     analysis.Provider
	Relay        *relay.Service
	ErrorHandler *appErrors.ErrorHandler
	Router       *rest.Router
}

// ApplyConfig pushes the reloadable parts of cfg into the running relay.
func (c *Container) ApplyConfig(cfg *config.Config) {
	c.Relay.UpdateSettings(ProvideRelaySettings(cfg))
}

// Shutdown flushes telemetry and syncs the logger.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if c.Tracing != nil {
		if err := c.Tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}
	// Sync on a terminal stderr fails with EINVAL on Linux.
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/application/relay"
	appErrors "github.com/ofumi529/Little-Artists-Studio/pkg/errors"
)

// MsgBodyTooLarge is returned when the drawing exceeds the body limit.
const MsgBodyTooLarge = "画像データが大きすぎます。"

// Analyzer is the relay use case served by AnalyzeHandler.
type Analyzer interface {
	Analyze(ctx context.Context, cmd relay.AnalyzeCommand) (*relay.AnalyzeResult, error)
}

// AnalyzeHandler handles the artwork analysis endpoint
type AnalyzeHandler struct {
	relay        Analyzer
	errorHandler *appErrors.ErrorHandler
	logger       *zap.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(relay Analyzer, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		relay:        relay,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// Analyze handles POST /api/analyze-art
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var cmd relay.AnalyzeCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := appErrors.NewValidationError(MsgBodyTooLarge).WithDebug("Request body too large")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			h.errorHandler.Handle(w, r, appErr)
			return
		}
		// An unreadable body is treated like one without imageData, so the
		// deployment checks still run first.
		if !errors.Is(err, io.EOF) {
			h.logger.Debug("Undecodable request body", zap.Error(err))
		}
		cmd = relay.AnalyzeCommand{}
	}

	result, err := h.relay.Analyze(r.Context(), cmd)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Preflight handles OPTIONS /api/analyze-art
func (h *AnalyzeHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "CORS preflight successful"})
}

// MethodNotAllowed answers every other method
func (h *AnalyzeHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

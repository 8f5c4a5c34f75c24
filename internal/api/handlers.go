// Package api exposes identification over HTTP for clients that must not
// hold the model API key.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/identify"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/internal/parser"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

const msgKeyNotConfigured = "API key not configured on server"

// Upstream calls the model and returns the full response envelope
type Upstream interface {
	GenerateContent(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error)
}

// Identifier returns the raw model text for an image
type Identifier interface {
	Identify(ctx context.Context, image models.ImageBuffer) (string, error)
}

// Handler holds dependencies for the identification handlers
type Handler struct {
	upstream   Upstream
	identifier Identifier
	slots      *semaphore.Weighted
	logger     *zap.Logger
}

// NewHandler creates a handler. maxConcurrent caps in-flight model calls
// across both identification routes.
func NewHandler(upstream Upstream, identifier Identifier, maxConcurrent int64, logger *zap.Logger) *Handler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Handler{
		upstream:   upstream,
		identifier: identifier,
		slots:      semaphore.NewWeighted(maxConcurrent),
		logger:     logging.OrNop(logger).Named("api"),
	}
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IdentifyPlant handles POST /api/identify-plant. It forwards the image to
// the model and relays the response envelope unchanged.
func (h *Handler) IdentifyPlant(w http.ResponseWriter, r *http.Request) {
	image, ok := h.decodeImage(w, r)
	if !ok {
		return
	}

	if err := h.acquire(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Server busy, please retry")
		return
	}
	defer h.slots.Release(1)

	resp, err := h.upstream.GenerateContent(r.Context(), identify.NewRequest(image))
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	// The raw HTTP response is SDK bookkeeping, not part of the envelope
	resp.SDKHTTPResponse = nil
	writeJSON(w, http.StatusOK, resp)
}

// Identify handles POST /api/identify. It runs the full pipeline on the
// server and returns the parsed record.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	image, ok := h.decodeImage(w, r)
	if !ok {
		return
	}

	if err := h.acquire(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Server busy, please retry")
		return
	}
	defer h.slots.Release(1)

	raw, err := h.identifier.Identify(r.Context(), image)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.IdentifyResponse{
		Plant: parser.Parse(raw),
		Raw:   raw,
	})
}

func (h *Handler) acquire(ctx context.Context) error {
	return h.slots.Acquire(ctx, 1)
}

func (h *Handler) decodeImage(w http.ResponseWriter, r *http.Request) (models.ImageBuffer, bool) {
	var req models.IdentifyPlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return models.ImageBuffer{}, false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return models.ImageBuffer{}, false
	}

	if strings.TrimSpace(req.ImageData) == "" {
		writeError(w, http.StatusBadRequest, "No image data provided")
		return models.ImageBuffer{}, false
	}

	image, err := models.DecodeImageData(req.ImageData, req.MIMEType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image data: "+err.Error())
		return models.ImageBuffer{}, false
	}
	return image, true
}

// writeUpstreamError maps a model failure onto the proxy's error contract
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := upstreamError(err)
	h.logger.Error("Error proxying request",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err))
	writeError(w, status, message)
}

func upstreamError(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		reason := apiErr.Message
		if reason == "" {
			reason = err.Error()
		}
		return apiErr.Code, fmt.Sprintf("API Error (%d): %s", apiErr.Code, reason)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.Unavailable:
			return http.StatusInternalServerError, msgKeyNotConfigured
		case apperr.HTTPError:
			return appErr.Status, appErr.Message
		case apperr.Timeout:
			return http.StatusGatewayTimeout, appErr.Message
		case apperr.EmptyResult:
			return http.StatusBadGateway, appErr.Message
		}
	}

	return http.StatusInternalServerError, "Server error: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/service"
)

// GenerateHandler relays metered generation requests.
type GenerateHandler struct {
	service *service.GenerateService
	logger  *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(svc *service.GenerateService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{service: svc, logger: logger}
}

// Generate deducts one credit and relays the generation request to the
// upstream model API. The upstream response is relayed byte for byte,
// including its status on failure; spent credits are never refunded.
//
// POST /api/v1/models/{model}:generateContent
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())
	model := chi.URLParam(r, "model")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "could not read request body")
		return
	}

	out, err := h.service.Generate(r.Context(), service.GenerateInput{
		AccountID: id.UserID,
		Email:     id.Email,
		Model:     model,
		Body:      body,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPayload):
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "generation request is malformed")
		case errors.Is(err, service.ErrOutOfCredits):
			writeErrorJSON(w, http.StatusPaymentRequired, "OUT_OF_CREDITS", "You are out of credits.")
		case errors.Is(err, service.ErrUpstreamTimeout):
			writeErrorJSON(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "The generation took too long.")
		case errors.Is(err, service.ErrUpstreamUnavailable):
			writeErrorJSON(w, http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", "The generation service is unavailable.")
		default:
			h.logger.Error("generation failed",
				slog.String("error", err.Error()),
				slog.String("user_id", id.UserID),
			)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error.")
		}
		return
	}

	w.Header().Set("X-Generation-Id", out.JobID)
	contentType := out.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(out.StatusCode)
	_, _ = w.Write(out.Body)
}

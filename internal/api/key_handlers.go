package api

import (
	"context"
	"net/http"

	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// KeyHandler is the credential-issuing endpoint used by clients that call the
// model directly
type KeyHandler struct {
	token func(ctx context.Context) (string, error)
}

// NewKeyHandler creates a key handler backed by token
func NewKeyHandler(token func(ctx context.Context) (string, error)) *KeyHandler {
	return &KeyHandler{token: token}
}

// ServeHTTP handles GET /api/config
func (h *KeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	key, err := h.token(r.Context())
	if err != nil || key == "" {
		writeError(w, http.StatusInternalServerError, msgKeyNotConfigured)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, models.KeyResponse{APIKey: key})
}

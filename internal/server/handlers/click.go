package handlers

import (
	"log/slog"
	"net/http"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/pool"
)

// ClickHandlers contains the public click submission handler.
type ClickHandlers struct {
	gate         *pool.Gate
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewClickHandlers creates a new click handlers instance.
func NewClickHandlers(gate *pool.Gate) *ClickHandlers {
	return &ClickHandlers{
		gate:         gate,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleClick runs the click gate for the caller's network identity.
// Rejections surface the classified wire contract: 429 already_clicked,
// 423 locked (with the operator's lock message), 503 store trouble.
func (h *ClickHandlers) HandleClick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	result, err := h.gate.Click(r.Context(), clientIdentity(r))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write click response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

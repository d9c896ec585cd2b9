package handlers

import (
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/server/responses"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

// APIHandlers contains the state and liveness HTTP handlers.
type APIHandlers struct {
	repo         *state.Repository
	store        store.Store
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(repo *state.Repository, st store.Store) *APIHandlers {
	return &APIHandlers{
		repo:         repo,
		store:        st,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleState serves the full public state snapshot.
func (h *APIHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	snap, err := h.repo.Snapshot(r.Context())
	if err != nil {
		storeErr := ferrors.WrapError(err, ferrors.CategoryStore, "state snapshot failed").Build()
		h.errorAdapter.WriteErrorResponse(w, r, storeErr)
		return
	}

	resp := responses.StateResponse{
		Count:       snap.Count,
		Target:      snap.Target,
		Launched:    snap.Launched,
		Locked:      snap.Locked,
		LockMsg:     snap.LockMsg,
		Decree:      snap.Decree,
		TideWarning: snap.TideWarning,
		Blessed:     snap.Blessed,
	}
	if snap.CA != "" {
		ca := snap.CA
		resp.CA = &ca
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write state response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandlePing probes the durable store and reports liveness.
func (h *APIHandlers) HandlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	if err := h.store.Ping(r.Context()); err != nil {
		storeErr := ferrors.WrapError(err, ferrors.CategoryStore, "store unreachable").Build()
		h.errorAdapter.WriteErrorResponse(w, r, storeErr)
		return
	}

	resp := responses.PingResponse{Status: "ok", Timestamp: time.Now().UTC()}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write ping response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/tidepool/internal/admin"
	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/server/responses"
)

const webhookProcessTimeout = 15 * time.Second

// WebhookHandlers receives admin channel updates. The endpoint always
// acknowledges immediately; command processing happens asynchronously so a
// slow store never backs up the inbound channel.
type WebhookHandlers struct {
	processor    *admin.Processor
	errorAdapter *ferrors.HTTPErrorAdapter
	logger       *slog.Logger
}

// NewWebhookHandlers constructs a new WebhookHandlers.
func NewWebhookHandlers(processor *admin.Processor, logger *slog.Logger) *WebhookHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandlers{
		processor:    processor,
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
	}
}

// webhookUpdate is the Telegram-style inbound payload. Only the fields the
// admin processor needs are decoded.
type webhookUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// HandleWebhook parses one update and hands it to the admin processor.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var update webhookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// Malformed payloads are acknowledged too; the channel retries
		// deliveries it considers failed, and a bad update will never
		// become good.
		h.logger.Warn("undecodable webhook payload", logfields.Error(err))
		_ = writeJSON(w, http.StatusOK, responses.WebhookAck{Status: "ignored"})
		return
	}

	if update.Message.Text != "" {
		u := admin.Update{
			ChatID: strconv.FormatInt(update.Message.Chat.ID, 10),
			Text:   update.Message.Text,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
			defer cancel()
			h.processor.HandleUpdate(ctx, u)
		}()
	}

	if err := writeJSON(w, http.StatusOK, responses.WebhookAck{Status: "accepted"}); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write webhook ack").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

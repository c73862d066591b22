// Package handlers provides the HTTP handlers for the webhook service:
// the Telegram webhook receiver, the health probe, and the metrics
// status page.
//
// The webhook handler is the head of the per-request pipeline:
// validate the update, relay the text to the completion client, send
// exactly one reply back to the originating chat. It always answers
// 200 once the payload has been read, whatever happens downstream,
// because a non-2xx response makes Telegram re-deliver the update.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/existlabs/gptbridge/errors"
	"github.com/existlabs/gptbridge/server/metrics"
	"github.com/existlabs/gptbridge/server/middleware"
	"github.com/existlabs/gptbridge/server/telegram"
)

// Completer is the completion client surface the handler needs.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// WebhookHandler processes Telegram webhook updates.
type WebhookHandler struct {
	bot           *telegram.Client
	completions   Completer
	metrics       *metrics.Metrics
	logger        *zap.Logger
	validate      *validator.Validate
	token         string
	maxInputChars int
}

// NewWebhookHandler creates the webhook handler. token is the bot token
// expected in the URL path; maxInputChars bounds accepted message length.
func NewWebhookHandler(bot *telegram.Client, completions Completer, m *metrics.Metrics, logger *zap.Logger, token string, maxInputChars int) *WebhookHandler {
	return &WebhookHandler{
		bot:           bot,
		completions:   completions,
		metrics:       m,
		logger:        logger,
		validate:      validator.New(),
		token:         token,
		maxInputChars: maxInputChars,
	}
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != h.token {
		// Wrong or missing token: not our webhook. Give nothing away.
		http.NotFound(w, r)
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(zap.String("request_id", requestID))

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// No chat ID to reply to. Acknowledge so Telegram stops
		// re-delivering a payload we can never parse.
		logger.Warn("Discarding undecodable update", zap.Error(err))
		h.metrics.RecordError(errors.MalformedInput)
		h.ok(w)
		return
	}

	if update.Message == nil {
		// Edits, channel posts, and other update kinds are out of scope.
		logger.Debug("Ignoring update without message", zap.Int("update_id", update.UpdateID))
		h.ok(w)
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID
	logger = logger.With(zap.Int64("chat_id", chatID))

	if cmd := msg.Command(); cmd != "" {
		h.handleCommand(r, logger, chatID, cmd)
		h.ok(w)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if err := h.validate.Var(text, fmt.Sprintf("required,max=%d", h.maxInputChars)); err != nil {
		logger.Warn("Rejecting invalid message text",
			zap.Int("length", len(text)),
			zap.Error(err),
		)
		h.metrics.RecordError(errors.MalformedInput)
		h.reply(r, logger, chatID, telegram.ReplyFor(errors.MalformedInput))
		h.ok(w)
		return
	}

	if msg.From != nil {
		logger = logger.With(zap.Int64("sender_id", msg.From.ID))
	}
	logger.Info("Processing message", zap.Int("length", len(text)))

	// Best-effort typing indicator while the model call runs.
	if err := h.bot.SendChatAction(r.Context(), chatID, telegram.ChatActionTyping); err != nil {
		logger.Debug("Failed to send typing action", zap.Error(err))
	}

	start := time.Now()
	reply, err := h.completions.Complete(r.Context(), text)
	h.metrics.RecordRequest(time.Since(start))

	if err != nil {
		category := errors.TypeOf(err)
		h.metrics.RecordError(category)
		logger.Error("Completion failed",
			zap.String("category", string(category)),
			zap.Error(err),
		)
		reply = telegram.ReplyFor(category)
	}

	h.reply(r, logger, chatID, reply)
	h.ok(w)
}

func (h *WebhookHandler) handleCommand(r *http.Request, logger *zap.Logger, chatID int64, cmd string) {
	logger.Info("Handling command", zap.String("command", cmd))

	switch cmd {
	case "start":
		h.reply(r, logger, chatID, telegram.ReplyWelcome)
	case "help":
		h.reply(r, logger, chatID, telegram.ReplyHelp)
	default:
		h.reply(r, logger, chatID, telegram.ReplyUnknownCommand)
	}
}

// reply sends the outbound message. Send failures are logged and
// counted but never propagate: notifying the user is best effort.
func (h *WebhookHandler) reply(r *http.Request, logger *zap.Logger, chatID int64, text string) {
	if err := h.bot.SendMessage(r.Context(), chatID, text); err != nil {
		h.metrics.RecordError(errors.SendFailure)
		logger.Error("Failed to send reply", zap.Error(err))
	}
}

// ok acknowledges the update to Telegram.
func (h *WebhookHandler) ok(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

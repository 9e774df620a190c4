package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/parser"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/reply"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/settlement"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/kuya-relay/kuya_relay/pkg/metrics"
)

// EventGuard short-circuits redelivered inbound events.
type EventGuard interface {
	MarkProcessed(ctx context.Context, event *entities.ProcessedEvent) (bool, error)
}

// WebhookHandler is the HTTP boundary of the pipeline. Every error is
// absorbed here; nothing propagates to the transport as an unhandled
// fault, and the sender always gets a same-channel reply on failure.
type WebhookHandler struct {
	parser        *parser.Parser
	engine        *settlement.Engine
	composer      *reply.Composer
	messenger     settlement.Messenger
	events        EventGuard
	webhookSecret string
	eventTTL      time.Duration
	logger        *logger.Logger
}

func NewWebhookHandler(
	p *parser.Parser,
	engine *settlement.Engine,
	composer *reply.Composer,
	messenger settlement.Messenger,
	events EventGuard,
	webhookSecret string,
	eventTTL time.Duration,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		parser:        p,
		engine:        engine,
		composer:      composer,
		messenger:     messenger,
		events:        events,
		webhookSecret: webhookSecret,
		eventTTL:      eventTTL,
		logger:        log,
	}
}

type inboundEvent struct {
	From       string `form:"From" json:"From"`
	Body       string `form:"Body" json:"Body"`
	MessageSid string `form:"MessageSid" json:"MessageSid"`
}

// HandleInbound processes one inbound message event.
func (h *WebhookHandler) HandleInbound(c *gin.Context) {
	if !h.verifySignature(c) {
		c.String(http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event inboundEvent
	if err := c.ShouldBind(&event); err != nil || event.From == "" || event.Body == "" {
		c.String(http.StatusBadRequest, "Missing From or Body")
		return
	}

	senderID := entities.SenderID(event.From)
	ctx := c.Request.Context()

	if event.MessageSid != "" {
		// Marked before the pipeline runs: a redelivery after a failed
		// settlement is dropped rather than risking a double mint.
		// At-most-once per message id, not at-least-once.
		first, err := h.events.MarkProcessed(ctx, &entities.ProcessedEvent{
			ID:        uuid.New(),
			EventID:   event.MessageSid,
			SenderID:  senderID,
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(h.eventTTL),
		})
		if err != nil {
			h.logger.Error("processed-event guard failed", "event_id", event.MessageSid, "error", err)
			c.String(http.StatusInternalServerError, "Internal error")
			return
		}
		if !first {
			metrics.DuplicateEventsTotal.Inc()
			h.logger.Info("duplicate inbound event skipped", "event_id", event.MessageSid)
			c.String(http.StatusOK, "OK")
			return
		}
	}

	cmd, err := h.parser.Parse(event.Body)
	if err != nil {
		h.replyBestEffort(c, senderID, h.composer.BadFormat(domainerrors.GetMessage(err)))
		c.String(http.StatusBadRequest, "Bad request")
		return
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd.Type)).Inc()

	switch cmd.Type {
	case entities.CommandSend:
		_, err = h.engine.HandleSend(ctx, senderID, cmd)
	case entities.CommandClaim:
		err = h.engine.HandleClaim(ctx, senderID)
	case entities.CommandRefer:
		err = h.engine.HandleRefer(ctx, senderID, cmd)
	case entities.CommandJoin:
		err = h.engine.HandleJoin(ctx, senderID)
	default:
		err = h.engine.HandleUnknown(ctx, senderID)
	}

	if err != nil {
		h.respondError(c, senderID, err)
		return
	}

	c.String(http.StatusOK, "OK")
}

// respondError maps a pipeline error to the HTTP status and, for every
// failure class, a best-effort same-channel reply so the sender never
// receives silence.
func (h *WebhookHandler) respondError(c *gin.Context, senderID entities.SenderID, err error) {
	h.logger.Error("pipeline error",
		"sender_id", string(senderID),
		"code", domainerrors.GetErrorCode(err),
		"error", err,
	)

	switch {
	case domainerrors.IsInvalidAmount(err):
		h.replyBestEffort(c, senderID, h.composer.InvalidAmount())
		c.String(http.StatusBadRequest, "Invalid amount")
	case domainerrors.IsInvalidInput(err):
		h.replyBestEffort(c, senderID, h.composer.BadFormat(domainerrors.GetMessage(err)))
		c.String(http.StatusBadRequest, "Bad request")
	case domainerrors.IsPrecondition(err):
		h.replyBestEffort(c, senderID, h.composer.NeedWalletFirst())
		c.String(http.StatusBadRequest, "Precondition failed")
	default:
		h.replyBestEffort(c, senderID, h.composer.TryAgain())
		c.String(http.StatusInternalServerError, "Internal error")
	}
}

func (h *WebhookHandler) replyBestEffort(c *gin.Context, senderID entities.SenderID, body string) {
	if err := h.messenger.Send(c.Request.Context(), string(senderID), body); err != nil {
		h.logger.Warn("failure reply delivery failed", "sender_id", string(senderID), "error", err)
	}
}

// verifySignature checks the HMAC-SHA256 signature of the raw body when a
// webhook secret is configured. Without a secret, verification is skipped.
func (h *WebhookHandler) verifySignature(c *gin.Context) bool {
	if h.webhookSecret == "" {
		return true
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if signature == "" {
		return false
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

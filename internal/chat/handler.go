package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/clinicware/outpatient-queue/internal/observability/metrics"
	redisclient "github.com/clinicware/outpatient-queue/internal/redis"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

// signatureHeader carries base64(HMAC-SHA256(channel secret, raw body)).
const signatureHeader = "X-Line-Signature"

// WebhookEvent is one entry of the channel's delivery envelope. Delivery is
// at-least-once; WebhookEventID identifies redeliveries.
type WebhookEvent struct {
	Type           string `json:"type"`
	WebhookEventID string `json:"webhookEventId"`
	ReplyToken     string `json:"replyToken"`
	Timestamp      int64  `json:"timestamp"`
	Source         struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"message"`
}

type webhookEnvelope struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookHandler verifies, dedupes and dispatches chat webhook deliveries
// into the conversation machine.
type WebhookHandler struct {
	machine       *Machine
	deduper       redisclient.Deduper
	channelSecret string
	metrics       *metrics.ChatMetrics
	logger        *logging.Logger
}

func NewWebhookHandler(machine *Machine, deduper redisclient.Deduper, channelSecret string, m *metrics.ChatMetrics, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		machine:       machine,
		deduper:       deduper,
		channelSecret: channelSecret,
		metrics:       m,
		logger:        logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	if !ValidateSignature(h.channelSecret, body, r.Header.Get(signatureHeader)) {
		h.metrics.ObserveInbound("unknown", "bad_signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "could not parse envelope", http.StatusBadRequest)
		return
	}

	for _, event := range envelope.Events {
		h.handleEvent(r, event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleEvent(r *http.Request, event WebhookEvent) {
	start := time.Now()
	ctx := r.Context()

	if event.WebhookEventID != "" && h.deduper != nil {
		seen, err := h.deduper.Seen(ctx, event.WebhookEventID)
		if err != nil {
			// Prefer double-handling over dropping when Redis is unreachable:
			// the booking duplicate guard catches the worst case downstream.
			h.logger.Warn("webhook dedupe unavailable", "error", err)
		} else if seen {
			h.metrics.ObserveInbound(event.Type, "duplicate")
			return
		}
	}

	var err error
	switch {
	case event.Type == "message" && event.Message.Type == "text" && event.Source.Type == "user":
		err = h.machine.HandleText(ctx, event.Source.UserID, event.ReplyToken, event.Message.Text)
	case event.Type == "follow":
		err = h.machine.HandleFollow(ctx, event.ReplyToken)
	default:
		h.metrics.ObserveInbound(event.Type, "ignored")
		return
	}

	if err != nil {
		h.metrics.ObserveInbound(event.Type, "error")
		h.logger.Error("webhook event handling failed",
			"event_type", event.Type,
			"user_id", event.Source.UserID,
			"error", err,
		)
	} else {
		h.metrics.ObserveInbound(event.Type, "ok")
	}

	h.metrics.ObserveWebhookLatency(event.Type, time.Since(start).Seconds())
}

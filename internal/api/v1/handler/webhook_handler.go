package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"veloryn/internal/api/v1/dto"
	"veloryn/internal/metrics"
	"veloryn/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const stripeSignatureHeader = "Stripe-Signature"

// EventVerifier checks a delivery's signature and decodes the event envelope.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// EventProcessor applies a verified billing event.
type EventProcessor interface {
	HandleEvent(ctx context.Context, event stripe.Event) (service.Outcome, error)
}

type WebhookHandler struct {
	verifier     EventVerifier
	processor    EventProcessor
	archiver     service.EventArchiver
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewWebhookHandler builds the Stripe webhook endpoint. A nil verifier or
// processor makes every delivery fail with 500 so Stripe keeps retrying
// until the deployment is fixed.
func NewWebhookHandler(verifier EventVerifier, processor EventProcessor, archiver service.EventArchiver, maxBodyBytes int64, logger zerolog.Logger) *WebhookHandler {
	if archiver == nil {
		archiver = service.NewNoopEventArchiver()
	}
	return &WebhookHandler{
		verifier:     verifier,
		processor:    processor,
		archiver:     archiver,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With().Str("handler", "WebhookHandler").Logger(),
	}
}

// RegisterRoutes mounts the webhook route. Stripe authenticates with the
// signature header, so no auth middleware is applied.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/stripe", h.handleStripeWebhook)
}

func (h *WebhookHandler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. Refuse to do anything without a secret and a store
	if h.verifier == nil || h.processor == nil {
		h.logger.Error().Msg("Webhook received but billing integration is not configured")
		metrics.WebhookRejected.WithLabelValues("not_configured").Inc()
		http.Error(w, "webhook not configured", http.StatusInternalServerError)
		return
	}

	// 2. Read the raw body; the signature covers the exact bytes
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.WebhookRejected.WithLabelValues("too_large").Inc()
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		metrics.WebhookRejected.WithLabelValues("read_error").Inc()
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	// 3. Verify the signature
	signature := r.Header.Get(stripeSignatureHeader)
	if signature == "" {
		h.logger.Warn().Msg("Webhook delivery without Stripe-Signature header")
		metrics.WebhookRejected.WithLabelValues("missing_signature").Inc()
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}
	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Webhook signature verification failed")
		metrics.WebhookRejected.WithLabelValues("invalid_signature").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// 4. Keep a copy of the verified payload
	if err := h.archiver.Archive(r.Context(), event.ID, time.Now(), payload); err != nil {
		h.logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to archive webhook payload")
	}

	// 5. Reconcile
	outcome, err := h.processor.HandleEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, service.ErrMalformedEvent) {
			http.Error(w, "malformed event payload", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dto.WebhookAckDTO{Received: true, Outcome: string(outcome)}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode webhook response")
	}
}

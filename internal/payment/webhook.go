package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ticketly/internal/logger"
	"ticketly/internal/models"
)

// Activator flips pending tickets to active once payment lands.
type Activator interface {
	Activate(ctx context.Context, ticketIDs []string) ([]models.Ticket, error)
}

// ActivationEffects fires the post-payment hooks for an activated
// batch. Online purchases defer their side effects to this point.
type ActivationEffects interface {
	TicketsActivated(ctx context.Context, tickets []models.Ticket)
}

// WebhookError classifies webhook failures so the HTTP layer can pick a
// status code without leaking internals.
type WebhookError struct {
	StatusCode    int
	PublicError   string
	InternalError string
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// WebhookHandler verifies Stripe event signatures and activates the
// tickets referenced by completed checkout sessions.
type WebhookHandler struct {
	Activator Activator
	Effects   ActivationEffects
	Log       *logger.Logger
}

func NewWebhookHandler(activator Activator, effects ActivationEffects, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{Activator: activator, Effects: effects, Log: log}
}

// Handle processes one webhook request. Unknown event types are
// acknowledged without action so Stripe stops retrying them.
func (h *WebhookHandler) Handle(r *http.Request) error {
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		h.Log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("read webhook payload: %v", err),
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), webhookSecret, opts)
	if err != nil {
		h.Log.Error("WEBHOOK", fmt.Sprintf("signature verification failed: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("construct event: %v", err),
		}
	}

	h.Log.Info("WEBHOOK", fmt.Sprintf("processing Stripe event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return &WebhookError{
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("unmarshal checkout session: %v", err),
			}
		}

		raw, ok := session.Metadata["ticket_ids"]
		if !ok || raw == "" {
			return &WebhookError{
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid checkout session data",
				InternalError: fmt.Sprintf("session %s has no ticket_ids in metadata", session.ID),
			}
		}

		ticketIDs := strings.Split(raw, ",")
		activated, err := h.Activator.Activate(r.Context(), ticketIDs)
		if err != nil {
			return &WebhookError{
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process payment",
				InternalError: fmt.Sprintf("activate tickets for session %s: %v", session.ID, err),
			}
		}

		if h.Effects != nil && len(activated) > 0 {
			h.Effects.TicketsActivated(r.Context(), activated)
		}

		h.Log.Info("WEBHOOK", fmt.Sprintf("activated %d ticket(s) for session %s", len(activated), session.ID))
		return nil

	default:
		// Not ours; acknowledge so Stripe stops retrying.
		h.Log.Debug("WEBHOOK", fmt.Sprintf("ignoring event type: %s", event.Type))
		return nil
	}
}

// ServeHTTP adapts Handle to the router.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Handle(r); err != nil {
		if whErr, ok := err.(*WebhookError); ok {
			http.Error(w, whErr.PublicError, whErr.StatusCode)
			return
		}
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

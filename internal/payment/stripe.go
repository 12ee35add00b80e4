package payment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ticketly/internal/logger"
	"ticketly/internal/models"
)

var (
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrCheckoutSessionFailed  = errors.New("stripe checkout session creation failed")
)

// StripeGateway opens hosted checkout sessions for online tiers. One
// session covers the whole batch; ticket IDs travel in the session
// metadata so the payment webhook can activate them.
type StripeGateway struct {
	client     *client.API
	successURL string
	cancelURL  string
	currency   string
	log        *logger.Logger
}

func NewStripeGateway(successURL, cancelURL, currency string, log *logger.Logger) (*StripeGateway, error) {
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(stripeKey, nil)
	log.Info("STRIPE", "Stripe client initialized successfully")

	return &StripeGateway{
		client:     sc,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   currency,
		log:        log,
	}, nil
}

// CreateBatchCheckoutSession creates one checkout session covering every
// ticket in the batch and returns the hosted checkout URL.
func (g *StripeGateway) CreateBatchCheckoutSession(ctx context.Context, event *models.Event, tier *models.TicketTier, userID string, tickets []models.Ticket, priceOverride *float64) (string, error) {
	unitPrice := tier.Price
	if tier.PriceType == models.PricePWYC && priceOverride != nil {
		unitPrice = *priceOverride
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%s - %s", event.Name, tier.Name)),
						Description: stripe.String(fmt.Sprintf("%d ticket(s)", len(tickets))),
					},
					UnitAmount: stripe.Int64(int64(unitPrice * 100)),
				},
				Quantity: stripe.Int64(int64(len(tickets))),
			},
		},
	}
	params.Context = ctx

	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	params.AddMetadata("event_id", event.ID)
	params.AddMetadata("tier_id", tier.ID)
	params.AddMetadata("user_id", userID)
	params.AddMetadata("ticket_ids", strings.Join(ids, ","))

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("checkout session for tier %s: %v", tier.ID, err))
		return "", fmt.Errorf("%w: %v", ErrCheckoutSessionFailed, err)
	}

	g.log.Info("STRIPE", fmt.Sprintf("checkout session %s created for %d ticket(s)", session.ID, len(tickets)))
	return session.URL, nil
}

package service

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Gateway abstracts the card payment provider. CreateIntent registers a
// charge attempt and returns the provider's reference; confirmation arrives
// later through the webhook, parsed by ParseWebhook.
type Gateway interface {
	CreateIntent(ctx context.Context, orderID, userID uuid.UUID, amount float64, currency string) (string, error)
	ParseWebhook(r *http.Request) (*GatewayEvent, error)
}

// GatewayEvent is the provider-neutral result of a webhook delivery
type GatewayEvent struct {
	OrderID   uuid.UUID
	Reference string
	Succeeded bool
}

// StripeGateway implements Gateway on the Stripe API
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway configures the global stripe client and returns a gateway
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, orderID, userID uuid.UUID, amount float64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		// Stripe amounts are integer minor units
		Amount:   stripe.Int64(int64(amount*100 + 0.5)),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID.String())
	params.AddMetadata("user_id", userID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (g *StripeGateway) ParseWebhook(r *http.Request) (*GatewayEvent, error) {
	payload, err := readBody(r)
	if err != nil {
		return nil, err
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return nil, err
	}

	var pi stripe.PaymentIntent
	if err := pi.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, err
	}

	orderID, err := uuid.Parse(pi.Metadata["order_id"])
	if err != nil {
		return nil, err
	}

	return &GatewayEvent{
		OrderID:   orderID,
		Reference: pi.ID,
		Succeeded: event.Type == "payment_intent.succeeded",
	}, nil
}

func readBody(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	return payload, nil
}

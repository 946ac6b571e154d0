package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeGateway{api: api, webhookSecret: cfg.WebhookSecret}
}

func (g *StripeGateway) CreateIntent(
	ctx context.Context,
	amountMinorUnits int64,
	currency string,
	metadata map[string]string,
) (Intent, error) {
	const op = "payment.StripeGateway.CreateIntent"

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinorUnits),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("%s: %w", op, err)
	}

	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, reference string) (Verification, error) {
	const op = "payment.StripeGateway.Verify"

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceMissing {
			return Verification{}, fmt.Errorf("%s: %w", op, ErrUnknownReference)
		}
		return Verification{}, fmt.Errorf("%s: %w", op, err)
	}

	return Verification{
		Succeeded:        pi.Status == stripe.PaymentIntentStatusSucceeded,
		Status:           string(pi.Status),
		AmountMinorUnits: pi.Amount,
		Currency:         string(pi.Currency),
		Metadata:         pi.Metadata,
	}, nil
}

// ParseWebhook checks the Stripe-Signature header against the endpoint
// secret before decoding anything.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	const op = "payment.StripeGateway.ParseWebhook"

	if g.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%s: webhook secret not configured: %w", op, ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}

	if ev.Type == EventPaymentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return WebhookEvent{}, fmt.Errorf("%s: decode payment intent: %w", op, err)
		}
		out.Reference = pi.ID
		out.Email = pi.Metadata["email"]
	}

	return out, nil
}

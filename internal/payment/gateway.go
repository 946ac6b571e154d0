// Package payment adapts the card processor behind a small gateway
// interface: create an intent, verify it later, parse signed webhooks.
package payment

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownReference = errors.New("unknown payment reference")
)

type Intent struct {
	ID           string
	ClientSecret string
}

type Verification struct {
	Succeeded        bool
	Status           string
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

// WebhookEvent is the subset of a processor event the service acts on.
type WebhookEvent struct {
	ID        string
	Type      string
	Reference string
	Email     string
}

const EventPaymentSucceeded = "payment_intent.succeeded"

type Gateway interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (Intent, error)
	Verify(ctx context.Context, reference string) (Verification, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

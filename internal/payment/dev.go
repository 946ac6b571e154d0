package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const devPrefix = "pi_dev_"

// DevGateway stands in for the processor in development. Every intent it
// created in this process verifies as succeeded; anything else is unknown.
// Webhooks are accepted unsigned.
type DevGateway struct {
	mu      sync.Mutex
	intents map[string]Verification
}

func NewDevGateway() *DevGateway {
	return &DevGateway{intents: make(map[string]Verification)}
}

func (g *DevGateway) CreateIntent(
	_ context.Context,
	amountMinorUnits int64,
	currency string,
	metadata map[string]string,
) (Intent, error) {
	id := devPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	g.mu.Lock()
	g.intents[id] = Verification{
		Succeeded:        true,
		Status:           "succeeded",
		AmountMinorUnits: amountMinorUnits,
		Currency:         currency,
		Metadata:         metadata,
	}
	g.mu.Unlock()

	return Intent{ID: id, ClientSecret: id + "_secret_dev"}, nil
}

func (g *DevGateway) Verify(ctx context.Context, reference string) (Verification, error) {
	const op = "payment.DevGateway.Verify"

	if err := ctx.Err(); err != nil {
		return Verification{}, fmt.Errorf("%s: %w", op, err)
	}

	g.mu.Lock()
	v, ok := g.intents[reference]
	g.mu.Unlock()
	if !ok {
		return Verification{}, fmt.Errorf("%s: %w", op, ErrUnknownReference)
	}

	return v, nil
}

func (g *DevGateway) ParseWebhook(payload []byte, _ string) (WebhookEvent, error) {
	const op = "payment.DevGateway.ParseWebhook"

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return WebhookEvent{}, fmt.Errorf("%s: %w", op, err)
	}

	return WebhookEvent{
		ID:        raw.ID,
		Type:      raw.Type,
		Reference: raw.Data.Object.ID,
		Email:     raw.Data.Object.Metadata["email"],
	}, nil
}

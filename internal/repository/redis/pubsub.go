package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ActivityTicketIssued    = "ticket_issued"
	ActivityTicketCancelled = "ticket_cancelled"
	ActivitySignupCreated   = "signup_created"
)

// Activity is one entry of the admin live feed.
type Activity struct {
	Type   string `json:"type"`
	Ref    string `json:"ref,omitempty"`
	Email  string `json:"email,omitempty"`
	TsUnix int64  `json:"ts_unix"`
}

type ActivityPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewActivityPubSub(rdb *redis.Client) *ActivityPubSub {
	return &ActivityPubSub{
		rdb:     rdb,
		channel: ChannelActivity(),
	}
}

// Publish is a no-op on a nil receiver so callers need not check whether
// Redis is configured.
func (p *ActivityPubSub) Publish(ctx context.Context, kind, ref, email string) error {
	if p == nil {
		return nil
	}

	b, err := json.Marshal(Activity{
		Type:   kind,
		Ref:    ref,
		Email:  email,
		TsUnix: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, string(b)).Err()
}

// Subscribe blocks, calling handler for every well-formed activity until ctx
// is done or the subscription closes.
func (p *ActivityPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, a Activity)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var a Activity
			if err := json.Unmarshal([]byte(m.Payload), &a); err == nil && a.Type != "" {
				handler(ctx, a)
			}
		}
	}
}

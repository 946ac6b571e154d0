package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/observability"
)

type Result struct {
	Delivered bool
	MessageID string
	Err       error
}

type Dispatcher struct {
	sender  mail.Sender
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(sender mail.Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Send hands msg to the sender once. It never returns an error and never
// panics; every failure is reported through Result.
func (d *Dispatcher) Send(ctx context.Context, msg mail.Message) (res Result) {
	const op = "notify.Dispatcher.Send"

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%s: sender panic: %v", op, r)}
		}

		outcome := "delivered"
		if !res.Delivered {
			outcome = "failed"
			d.logger.Warn("mail delivery failed",
				slog.String("op", op),
				slog.String("tag", msg.Tag),
				slog.Any("to", msg.To),
				slog.Any("error", res.Err),
			)
		}
		observability.MailDeliveries.WithLabelValues(msg.Tag, outcome).Inc()
	}()

	if d.sender == nil {
		return Result{Err: fmt.Errorf("%s: no mail sender configured", op)}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := d.sender.Deliver(ctx, msg)
	if err != nil {
		return Result{Err: fmt.Errorf("%s: %w", op, err)}
	}

	return Result{Delivered: true, MessageID: id}
}

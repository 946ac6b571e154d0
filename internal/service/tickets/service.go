package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/observability"
	"github.com/kirinyoku/amparena/internal/repository"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
)

type Store interface {
	FindByEmail(ctx context.Context, email string) ([]domain.Ticket, error)
	FindByCode(ctx context.Context, code string) (*domain.Ticket, error)
	List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error)
	MarkCancelled(ctx context.Context, code string) error
	CountByStatus(ctx context.Context, status domain.TicketStatus) (int64, error)
}

type RetrievalComposer interface {
	ComposeRetrievalMessage(tickets []domain.Ticket, requestedAt time.Time) mail.Message
}

type Dispatcher interface {
	Send(ctx context.Context, msg mail.Message) notify.Result
}

// Mailer re-sends the confirmation for a single ticket.
type Mailer interface {
	Deliver(ctx context.Context, t domain.Ticket) bool
}

type Limiter interface {
	Scope() string
	Allow(ctx context.Context, id string) (bool, int64, time.Duration, error)
}

type Config struct {
	CountTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
}

// Deps wires the service. Limiters, Cache and Activity are optional.
type Deps struct {
	Store        Store
	Composer     RetrievalComposer
	Dispatcher   Dispatcher
	Mailer       Mailer
	IPLimiter    Limiter
	EmailLimiter Limiter
	Cache        *redisrepo.Cache
	Activity     *redisrepo.ActivityPubSub
	Logger       *slog.Logger
}

type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

func New(deps Deps, cfg Config) *Service {
	if cfg.CountTTL <= 0 {
		cfg.CountTTL = 30 * time.Second
	}

	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}

	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 500
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

type RetrieveResult struct {
	TicketCount int `json:"ticketCount"`
}

// Retrieve mails every confirmed ticket of email in one message.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email: purchaser email, matched case-insensitively.
//   - clientIP: caller address for rate limiting; may be empty.
//
// Returns:
//   - RetrieveResult: how many tickets were sent.
//   - error: tickets.ErrInvalidEmail for a malformed address.
//   - error: tickets.ErrNoTickets if the email has no confirmed ticket.
//   - error: *tickets.RateLimitError when a limiter rejects the call.
//   - error: tickets.ErrDeliveryFailed if the message could not be sent.
func (s *Service) Retrieve(ctx context.Context, email, clientIP string) (RetrieveResult, error) {
	const op = "service.tickets.Retrieve"

	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return RetrieveResult{}, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := s.allow(ctx, s.IPLimiter, clientIP); err != nil {
		return RetrieveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.allow(ctx, s.EmailLimiter, email); err != nil {
		return RetrieveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	all, err := s.Store.FindByEmail(ctx, email)
	if err != nil {
		return RetrieveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	confirmed := make([]domain.Ticket, 0, len(all))
	for _, t := range all {
		if t.Status == domain.TicketConfirmed {
			confirmed = append(confirmed, t)
		}
	}

	if len(confirmed) == 0 {
		return RetrieveResult{}, fmt.Errorf("%s: %w", op, ErrNoTickets)
	}

	msg := s.Composer.ComposeRetrievalMessage(confirmed, s.now())

	if res := s.Dispatcher.Send(ctx, msg); !res.Delivered {
		return RetrieveResult{}, fmt.Errorf("%s: %w: %v", op, ErrDeliveryFailed, res.Err)
	}

	return RetrieveResult{TicketCount: len(confirmed)}, nil
}

func (s *Service) allow(ctx context.Context, l Limiter, id string) error {
	if l == nil || id == "" {
		return nil
	}

	ok, _, retry, err := l.Allow(ctx, id)
	if err != nil {
		// fail open
		s.Logger.Warn("rate limiter unavailable", slog.String("scope", l.Scope()), slog.Any("error", err))
		return nil
	}

	if !ok {
		observability.RateLimitExceeded.WithLabelValues(l.Scope()).Inc()
		return &RateLimitError{Scope: l.Scope(), RetryAfter: retry}
	}

	return nil
}

// List returns tickets newest first. limit is clamped to the configured range.
func (s *Service) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	const op = "service.tickets.List"

	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultLimit
	}
	if f.Limit > s.cfg.MaxLimit {
		f.Limit = s.cfg.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	out, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if out == nil {
		out = []domain.Ticket{}
	}

	return out, nil
}

// Cancel marks a ticket cancelled.
//
// Returns:
//   - error: tickets.ErrTicketNotFound if no ticket has the code.
//   - error: tickets.ErrAlreadyCanceled if it was cancelled before.
func (s *Service) Cancel(ctx context.Context, code string) error {
	const op = "service.tickets.Cancel"

	err := s.Store.MarkCancelled(ctx, code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrTicketNotFound)
	case errors.Is(err, repository.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", op, ErrAlreadyCanceled)
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.Cache.InvalidateTicketCount(ctx)
	_ = s.Activity.Publish(ctx, redisrepo.ActivityTicketCancelled, code, "")

	return nil
}

// Resend mails the confirmation for one confirmed ticket again.
func (s *Service) Resend(ctx context.Context, code string) (bool, error) {
	const op = "service.tickets.Resend"

	t, err := s.Store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%s: %w", op, ErrTicketNotFound)
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if t.Status != domain.TicketConfirmed {
		return false, fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	return s.Mailer.Deliver(ctx, *t), nil
}

// CountConfirmed is served from the cache when Redis is configured.
func (s *Service) CountConfirmed(ctx context.Context) (int64, error) {
	const op = "service.tickets.CountConfirmed"

	n, err := redisrepo.GetOrSetJSON(ctx, s.Cache, redisrepo.KeyTicketCount(), s.cfg.CountTTL,
		func(ctx context.Context) (int64, error) {
			return s.Store.CountByStatus(ctx, domain.TicketConfirmed)
		},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

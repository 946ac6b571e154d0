package signups

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
	"github.com/kirinyoku/amparena/internal/repository"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
)

type Store interface {
	Create(ctx context.Context, email string) (*domain.Signup, error)
	List(ctx context.Context, limit, offset int) ([]domain.Signup, error)
	Count(ctx context.Context) (int64, error)
	ListForNotification(ctx context.Context, onlyPending bool, limit int) ([]domain.Signup, error)
	MarkNotified(ctx context.Context, id int64) error
}

type Composer interface {
	ComposeSignupMessage(name, email string) (mail.Message, error)
	ComposeSignupAlert(to string, s domain.Signup) mail.Message
}

type Dispatcher interface {
	Send(ctx context.Context, msg mail.Message) notify.Result
}

type Config struct {
	// AlertEmail gets a note for every new signup when set.
	AlertEmail   string
	CountTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
	// BatchSize caps how many signups one NotifyPending call reads.
	BatchSize int
}

type Deps struct {
	Store      Store
	Composer   Composer
	Dispatcher Dispatcher
	Cache      *redisrepo.Cache
	Activity   *redisrepo.ActivityPubSub
	Logger     *slog.Logger
}

type Service struct {
	Deps
	cfg Config
}

func New(deps Deps, cfg Config) *Service {
	if cfg.CountTTL <= 0 {
		cfg.CountTTL = 30 * time.Second
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10_000
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{Deps: deps, cfg: cfg}
}

// Create registers email for event updates.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email: address to register; trimmed and lower-cased.
//
// Returns:
//   - *domain.Signup: the stored signup.
//   - error: signups.ErrInvalidEmail for a malformed address.
//   - error: signups.ErrAlreadySignedUp if the address is registered.
func (s *Service) Create(ctx context.Context, email string) (*domain.Signup, error) {
	const op = "service.signups.Create"

	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, validation.Length(3, 254), is.EmailFormat); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	su, err := s.Store.Create(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadySignedUp)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_ = s.Cache.InvalidateSignupCount(ctx)
	_ = s.Activity.Publish(ctx, redisrepo.ActivitySignupCreated, fmt.Sprint(su.ID), su.Email)

	if s.cfg.AlertEmail != "" {
		if res := s.Dispatcher.Send(ctx, s.Composer.ComposeSignupAlert(s.cfg.AlertEmail, *su)); !res.Delivered {
			s.Logger.Warn("signup alert not sent", slog.Int64("signup_id", su.ID), slog.Any("error", res.Err))
		}
	}

	return su, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Signup, error) {
	const op = "service.signups.List"

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	out, err := s.Store.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out == nil {
		out = []domain.Signup{}
	}

	return out, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	const op = "service.signups.Count"

	n, err := redisrepo.GetOrSetJSON(ctx, s.Cache, redisrepo.KeySignupCount(), s.cfg.CountTTL,
		func(ctx context.Context) (int64, error) { return s.Store.Count(ctx) },
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

type Summary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// NotifyPending mails template to signups. Unless all is set only signups
// that were never notified are included. A signup is marked notified only
// after its message was delivered.
func (s *Service) NotifyPending(ctx context.Context, template string, all bool) (Summary, error) {
	const op = "service.signups.NotifyPending"

	if template != notify.TemplateWelcome && template != notify.TemplateReminder {
		return Summary{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownTemplate, template)
	}

	list, err := s.Store.ListForNotification(ctx, !all, s.cfg.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", op, err)
	}

	var sum Summary
	for _, su := range list {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("%s: %w", op, err)
		}

		msg, err := s.Composer.ComposeSignupMessage(template, su.Email)
		if err != nil {
			return sum, fmt.Errorf("%s: %w", op, err)
		}

		res := s.Dispatcher.Send(ctx, msg)
		if !res.Delivered {
			sum.Failed++
			s.Logger.Warn("signup notification failed",
				slog.Int64("signup_id", su.ID),
				slog.String("template", template),
				slog.Any("error", res.Err),
			)
			continue
		}

		if err := s.Store.MarkNotified(ctx, su.ID); err != nil {
			s.Logger.Error("mark notified", slog.Int64("signup_id", su.ID), slog.Any("error", err))
		}
		sum.Sent++
	}

	s.Logger.Info("signup notifications done",
		slog.String("template", template),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
	)

	return sum, nil
}

package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/observability"
	"github.com/kirinyoku/amparena/internal/payment"
	"github.com/kirinyoku/amparena/internal/repository"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxCodeAttempts = 10

var tracer = otel.Tracer("github.com/kirinyoku/amparena/internal/service/purchase")

// Ledger is the subset of the ticket store the orchestrator writes through.
type Ledger interface {
	Insert(ctx context.Context, t domain.Ticket) (string, error)
	FindByPaymentReference(ctx context.Context, ref string) (*domain.Ticket, error)
	MarkConfirmed(ctx context.Context, code string) error
}

type CodeGenerator interface {
	Generate() string
}

type DocumentRenderer interface {
	RenderTicketDocument(t domain.Ticket, ev domain.Event) ([]byte, error)
}

type InviteBuilder interface {
	BuildInviteFile(t domain.Ticket, ev domain.Event) ([]byte, error)
}

type Composer interface {
	ComposeTicketMessage(t domain.Ticket, ev domain.Event, document, invite []byte) mail.Message
}

type Dispatcher interface {
	Send(ctx context.Context, msg mail.Message) notify.Result
}

type Config struct {
	Event           domain.Event
	Kind            domain.TicketKind
	PriceMinorUnits int64
	Currency        string
	PaymentTimeout  time.Duration
	MaxCodeAttempts int
}

// Deps are the collaborators of the orchestrator. Cache and Activity may be
// nil when Redis is not configured.
type Deps struct {
	Ledger     Ledger
	Gateway    payment.Gateway
	Codes      CodeGenerator
	Documents  DocumentRenderer
	Invites    InviteBuilder
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
	if cfg.Kind == "" {
		cfg.Kind = domain.KindGeneralAdmission
	}

	if cfg.PriceMinorUnits <= 0 {
		cfg.PriceMinorUnits = 2000
	}

	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}

	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = DefaultMaxCodeAttempts
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{Deps: deps, cfg: cfg}
}

func (s *Service) Event() domain.Event { return s.cfg.Event }

// CreateIntent starts a payment for one ticket at the configured price.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email: purchaser email, stored on the intent metadata.
//
// Returns:
//   - payment.Intent: the processor intent with its client secret.
//   - error: *ValidationError if the email is malformed.
func (s *Service) CreateIntent(ctx context.Context, email string) (payment.Intent, error) {
	const op = "service.purchase.CreateIntent"

	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return payment.Intent{}, fmt.Errorf("%s: %w", op, &ValidationError{Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	intent, err := s.Gateway.CreateIntent(ctx, s.cfg.PriceMinorUnits, s.cfg.Currency, map[string]string{
		"email": email,
		"event": s.cfg.Event.Name,
	})
	if err != nil {
		return payment.Intent{}, fmt.Errorf("%s: %w", op, err)
	}

	return intent, nil
}

// Confirm issues the ticket for a completed payment. Everything before the
// ticket is persisted aborts with an error; everything after is best-effort
// and only reflected in the result.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: purchaser email and payment reference.
//
// Returns:
//   - Result: the issued (or previously issued) ticket code and whether the
//     confirmation email went out.
//   - error: *ValidationError, ErrPaymentNotConfirmed, ErrCodeExhaustion or
//     ErrTicketCancelled.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (res Result, err error) {
	const op = "service.purchase.Confirm"

	ctx, span := tracer.Start(ctx, "purchase.Confirm",
		trace.WithAttributes(attribute.String("payment.reference", in.PaymentReference)),
	)
	defer span.End()

	res.State = StateAwaitingPayment

	defer func() {
		outcome := "issued"
		switch {
		case err != nil:
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, res.Reason)
		case res.Duplicate:
			outcome = "duplicate"
		}
		span.SetAttributes(
			attribute.String("purchase.state", string(res.State)),
			attribute.String("purchase.outcome", outcome),
		)
		observability.PurchaseOutcomes.WithLabelValues(string(res.State), outcome).Inc()
	}()

	in = in.normalize(s.cfg)
	if verr := in.Validate(); verr != nil {
		return s.fail(res, ReasonValidation), fmt.Errorf("%s: %w", op, &ValidationError{Err: verr})
	}

	existing, err := s.Ledger.FindByPaymentReference(ctx, in.PaymentReference)
	switch {
	case err == nil:
		return s.resume(ctx, op, res, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return s.fail(res, ReasonStorage), fmt.Errorf("%s: %w", op, err)
	}

	paid, err := s.verifyPayment(ctx, in.PaymentReference, in.Email, s.cfg.PriceMinorUnits)
	if err != nil {
		return s.fail(res, ReasonPaymentNotConfirmed), fmt.Errorf("%s: %w", op, err)
	}
	if in.PriceMinorUnits != paid.AmountMinorUnits {
		return s.fail(res, ReasonPaymentNotConfirmed), fmt.Errorf("%s: %w: requested price %d, paid %d",
			op, ErrPaymentNotConfirmed, in.PriceMinorUnits, paid.AmountMinorUnits)
	}
	in.PriceMinorUnits = paid.AmountMinorUnits
	s.advance(ctx, &res, StatePaymentConfirmed)

	ticket, dup, err := s.issue(ctx, &res, in)
	if err != nil {
		reason := ReasonStorage
		if errors.Is(err, ErrCodeExhaustion) {
			reason = ReasonCodeExhaustion
		}
		return s.fail(res, reason), fmt.Errorf("%s: %w", op, err)
	}

	if dup {
		return s.duplicate(res, ticket), nil
	}

	s.advance(ctx, &res, StatePersisted)
	s.afterPersist(ctx, ticket)

	return s.finish(ctx, res, ticket), nil
}

// resume handles a payment reference the ledger already knows. A confirmed
// ticket is returned as is; a pending one is confirmed and delivered.
func (s *Service) resume(ctx context.Context, op string, res Result, t *domain.Ticket) (Result, error) {
	switch t.Status {
	case domain.TicketConfirmed:
		return s.duplicate(res, t), nil
	case domain.TicketCancelled:
		return s.fail(res, ReasonCancelled), fmt.Errorf("%s: %w", op, ErrTicketCancelled)
	}

	if _, err := s.verifyPayment(ctx, t.PaymentReference, t.Email, t.PriceMinorUnits); err != nil {
		return s.fail(res, ReasonPaymentNotConfirmed), fmt.Errorf("%s: %w", op, err)
	}
	s.advance(ctx, &res, StatePaymentConfirmed)

	if err := s.Ledger.MarkConfirmed(ctx, t.Code); err != nil {
		if errors.Is(err, repository.ErrNothingToConfirm) {
			// a concurrent request confirmed it first
			return s.duplicate(res, t), nil
		}
		return s.fail(res, ReasonStorage), fmt.Errorf("%s: %w", op, err)
	}

	t.Status = domain.TicketConfirmed
	s.advance(ctx, &res, StatePersisted)
	s.afterPersist(ctx, t)

	return s.finish(ctx, res, t), nil
}

// verifyPayment asks the gateway about ref and checks the payment is for the
// ticket being issued: the amount is price in the configured currency and,
// when the intent recorded one, the purchaser email is email.
func (s *Service) verifyPayment(ctx context.Context, ref, email string, price int64) (payment.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	v, err := s.Gateway.Verify(ctx, ref)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrPaymentNotConfirmed, err)
	}

	if !v.Succeeded {
		return v, fmt.Errorf("%w: status %q", ErrPaymentNotConfirmed, v.Status)
	}

	if v.AmountMinorUnits != price {
		return v, fmt.Errorf("%w: paid %d, ticket costs %d", ErrPaymentNotConfirmed, v.AmountMinorUnits, price)
	}

	if !strings.EqualFold(v.Currency, s.cfg.Currency) {
		return v, fmt.Errorf("%w: paid in %q, ticket priced in %q", ErrPaymentNotConfirmed, v.Currency, s.cfg.Currency)
	}

	if owner := v.Metadata["email"]; owner != "" && NormalizeEmail(owner) != email {
		return v, fmt.Errorf("%w: payment belongs to another purchaser", ErrPaymentNotConfirmed)
	}

	return v, nil
}

// issue generates codes until one is accepted by the ledger. dup reports that
// another request stored a ticket for the same payment reference first; the
// returned ticket is then that one.
func (s *Service) issue(ctx context.Context, res *Result, in ConfirmInput) (t *domain.Ticket, dup bool, err error) {
	for attempt := 1; attempt <= s.cfg.MaxCodeAttempts; attempt++ {
		candidate := domain.Ticket{
			Code:             s.Codes.Generate(),
			Email:            in.Email,
			Kind:             in.Kind,
			PriceMinorUnits:  in.PriceMinorUnits,
			PaymentReference: in.PaymentReference,
			Status:           domain.TicketConfirmed,
			CreatedAt:        time.Now().UTC(),
		}
		s.advance(ctx, res, StateCodeAssigned)

		_, err := s.Ledger.Insert(ctx, candidate)
		switch {
		case err == nil:
			return &candidate, false, nil
		case errors.Is(err, repository.ErrDuplicateCode):
			observability.CodeCollisions.Inc()
			s.Logger.Warn("ticket code collision",
				slog.String("op", "service.purchase.issue"),
				slog.String("ticket_code", candidate.Code),
				slog.Int("attempt", attempt),
			)
			continue
		case errors.Is(err, repository.ErrDuplicatePaymentReference):
			winner, ferr := s.Ledger.FindByPaymentReference(ctx, in.PaymentReference)
			if ferr != nil {
				return nil, false, ferr
			}
			return winner, true, nil
		default:
			return nil, false, err
		}
	}

	return nil, false, ErrCodeExhaustion
}

func (s *Service) afterPersist(ctx context.Context, t *domain.Ticket) {
	observability.TicketsIssued.Inc()

	if err := s.Cache.InvalidateTicketCount(ctx); err != nil {
		s.Logger.Warn("ticket count invalidation failed", slog.Any("error", err))
	}

	if err := s.Activity.Publish(ctx, redisrepo.ActivityTicketIssued, t.Code, t.Email); err != nil {
		s.Logger.Warn("activity publish failed", slog.Any("error", err))
	}
}

// finish runs the best-effort tail: render artifacts, compose and send.
func (s *Service) finish(ctx context.Context, res Result, t *domain.Ticket) Result {
	res.Success = true
	res.TicketCode = t.Code
	res.Ticket = t

	res.EmailSent = s.deliver(ctx, &res, *t)
	s.advance(ctx, &res, StateComplete)

	s.Logger.Info("ticket issued",
		slog.String("ticket_code", t.Code),
		slog.Bool("email_sent", res.EmailSent),
	)

	return res
}

// Deliver renders and mails an existing ticket again. It reports whether the
// message was handed to the mail transport.
func (s *Service) Deliver(ctx context.Context, t domain.Ticket) bool {
	var res Result
	return s.deliver(ctx, &res, t)
}

func (s *Service) deliver(ctx context.Context, res *Result, t domain.Ticket) bool {
	const op = "service.purchase.deliver"

	ev := s.cfg.Event

	document, err := safeRender(func() ([]byte, error) { return s.Documents.RenderTicketDocument(t, ev) })
	if err != nil {
		observability.RenderFailures.WithLabelValues("document").Inc()
		s.Logger.Error("ticket document render failed",
			slog.String("op", op), slog.String("ticket_code", t.Code), slog.Any("error", err))
		document = nil
	}

	invite, err := safeRender(func() ([]byte, error) { return s.Invites.BuildInviteFile(t, ev) })
	if err != nil {
		observability.RenderFailures.WithLabelValues("invite").Inc()
		s.Logger.Error("calendar invite build failed",
			slog.String("op", op), slog.String("ticket_code", t.Code), slog.Any("error", err))
		invite = nil
	}
	s.advance(ctx, res, StateDocumentsRendered)

	msg := s.Composer.ComposeTicketMessage(t, ev, document, invite)

	sent := s.Dispatcher.Send(ctx, msg)
	if sent.Delivered {
		s.advance(ctx, res, StateNotified)
	}

	return sent.Delivered
}

func safeRender(fn func() ([]byte, error)) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return fn()
}

func (s *Service) advance(ctx context.Context, res *Result, st State) {
	res.State = st
	trace.SpanFromContext(ctx).AddEvent(string(st))
}

func (s *Service) fail(res Result, reason string) Result {
	res.State = StateFailed
	res.Reason = reason
	res.Success = false
	return res
}

func (s *Service) duplicate(res Result, t *domain.Ticket) Result {
	res.Success = true
	res.Duplicate = true
	res.TicketCode = t.Code
	res.Ticket = t
	res.State = StateComplete
	return res
}

// HandleWebhook verifies and applies a processor event. Events other than a
// succeeded payment are acknowledged without action (handled is false).
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (res Result, handled bool, err error) {
	const op = "service.purchase.HandleWebhook"

	ev, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		return Result{}, false, fmt.Errorf("%s: %w: %v", op, ErrInvalidWebhook, err)
	}

	if ev.Type != payment.EventPaymentSucceeded {
		s.Logger.Debug("webhook ignored", slog.String("type", ev.Type), slog.String("id", ev.ID))
		return Result{}, false, nil
	}

	res, err = s.Confirm(ctx, ConfirmInput{Email: ev.Email, PaymentReference: ev.Reference})
	if err != nil {
		return res, true, fmt.Errorf("%s: %w", op, err)
	}

	return res, true, nil
}

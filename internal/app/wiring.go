package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/amparena/internal/calendar"
	"github.com/kirinyoku/amparena/internal/config"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/filestore"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/payment"
	"github.com/kirinyoku/amparena/internal/postgres"
	"github.com/kirinyoku/amparena/internal/redis"
	"github.com/kirinyoku/amparena/internal/render"
	postgresrepo "github.com/kirinyoku/amparena/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	sqliterepo "github.com/kirinyoku/amparena/internal/repository/sqlite"
	"github.com/kirinyoku/amparena/internal/service"
	"github.com/kirinyoku/amparena/internal/service/purchase"
	"github.com/kirinyoku/amparena/internal/service/signups"
	"github.com/kirinyoku/amparena/internal/service/tickets"
	"github.com/kirinyoku/amparena/internal/sqlite"
	"github.com/kirinyoku/amparena/internal/ticketcode"
)

// Retrieval limits per client address and per purchaser email.
const (
	retrieveIPLimit    = 10
	retrieveEmailLimit = 3
	retrieveWindow     = 10 * time.Minute
)

// Core is everything but the transports: storage, optional redis pieces and
// the services built on them.
type Core struct {
	Services    *service.Services
	Idempotency *redisrepo.IdempotencyStore
	Activity    *redisrepo.ActivityPubSub
	LocalFiles  *filestore.Local

	closers []func() error
}

// Close releases storage and redis connections in reverse order of opening.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Core, err error) {
	const op = "app.NewCore"

	core := &Core{}
	defer func() {
		if err != nil {
			_ = core.Close()
		}
	}()

	var infra service.Infra
	infra.Logger = logger

	if err := openStorage(ctx, cfg, core, &infra); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to initialize redis: %w", op, err)
		}
		core.closers = append(core.closers, rdb.Close)

		infra.Cache = redisrepo.NewCache(rdb)
		infra.Activity = redisrepo.NewActivityPubSub(rdb)
		infra.IPLimiter = redisrepo.NewSlidingWindowLimiter(rdb, "retrieve-ip", retrieveIPLimit, retrieveWindow)
		infra.EmailLimiter = redisrepo.NewSlidingWindowLimiter(rdb, "retrieve-email", retrieveEmailLimit, retrieveWindow)

		core.Idempotency = redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)
		core.Activity = infra.Activity
	} else {
		logger.Info("redis not configured; caching, rate limits and live feed disabled")
	}

	if infra.Gateway, err = newGateway(cfg, logger); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if infra.Files, core.LocalFiles, err = newFileStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ev := eventOf(cfg.Event)
	documents := render.New()
	invites := calendar.New(calendar.Config{
		UIDPrefix: cfg.Event.UIDPrefix,
		UIDDomain: cfg.Event.UIDDomain,
		Organizer: cfg.Event.SupportEmail,
	})

	composer, err := notify.NewComposer(notify.Config{Event: ev, FilePrefix: cfg.Event.FilePrefix}, documents, invites, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	infra.Codes = ticketcode.New(cfg.Event.CodePrefix)
	infra.Documents = documents
	infra.Invites = invites
	infra.Composer = composer
	infra.Dispatcher = notify.NewDispatcher(sender, cfg.Timeouts.Mail, logger)

	core.Services = service.NewServices(infra, service.Config{
		Purchase: purchase.Config{
			Event:           ev,
			Kind:            domain.KindGeneralAdmission,
			PriceMinorUnits: cfg.Event.PriceCents,
			Currency:        cfg.Event.Currency,
			PaymentTimeout:  cfg.Timeouts.Payment,
		},
		Tickets: tickets.Config{},
		Signups: signups.Config{AlertEmail: cfg.Notifier.AlertEmail},
	})

	return core, nil
}

func openStorage(ctx context.Context, cfg *config.Config, core *Core, infra *service.Infra) error {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN(),
			MaxConns: cfg.Postgres.MaxConns,
			AppName:  "amparena",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize postgres: %w", err)
		}

		st := postgresrepo.NewStore(pool)
		core.closers = append(core.closers, st.Close)

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		infra.Tickets = st.Tickets()
		infra.Signups = st.Signups()
		infra.Competitors = st.Competitors()
	default:
		db, err := sqlite.New(ctx, sqlite.Config{Path: cfg.Storage.SQLitePath})
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite: %w", err)
		}

		st := sqliterepo.NewStore(db)
		core.closers = append(core.closers, st.Close)

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		infra.Tickets = st.Tickets()
		infra.Signups = st.Signups()
		infra.Competitors = st.Competitors()
	}

	return nil
}

func newGateway(cfg *config.Config, logger *slog.Logger) (payment.Gateway, error) {
	if cfg.Payment.Gateway == config.GatewayDev {
		logger.Warn("using development payment gateway; intents created by this process verify as paid")
		return payment.NewDevGateway(), nil
	}

	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("missing STRIPE_SECRET_KEY (set PAYMENT_GATEWAY=dev for local development)")
	}

	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; webhooks will be rejected")
	}

	return payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}), nil
}

func newSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	from := mail.From{Address: cfg.Mail.From, Name: cfg.Mail.FromName}

	if cfg.Mail.Host != "" {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     from,
			Timeout:  cfg.Timeouts.Mail,
		}), nil
	}

	logger.Info("EMAIL_HOST not set; writing mail to outbox", slog.String("dir", cfg.Mail.OutboxDir))
	return mail.NewOutboxSender(cfg.Mail.OutboxDir, from, logger)
}

func newFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, *filestore.Local, error) {
	u := cfg.Uploads

	if u.S3Bucket != "" {
		s3, err := filestore.NewS3(ctx, filestore.S3Config{
			Bucket:        u.S3Bucket,
			Endpoint:      u.S3Endpoint,
			Region:        u.S3Region,
			AccessKey:     u.S3AccessKey,
			SecretKey:     u.S3SecretKey,
			PublicBaseURL: u.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	}

	local, err := filestore.NewLocal(u.Dir, u.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

func eventOf(e config.EventConfig) domain.Event {
	return domain.Event{
		Name:           e.Name,
		DateLabel:      e.DateLabel,
		Venue:          e.Venue,
		Address:        e.Address,
		Starts:         e.Starts,
		Ends:           e.Ends,
		CurrencySymbol: e.CurrencySymbol,
		SupportEmail:   e.SupportEmail,
		SiteURL:        e.SiteURL,
		Tagline:        e.Tagline,
	}
}

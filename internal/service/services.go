package service

import (
	"log/slog"

	"github.com/kirinyoku/amparena/internal/filestore"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/payment"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	"github.com/kirinyoku/amparena/internal/service/competitors"
	"github.com/kirinyoku/amparena/internal/service/purchase"
	"github.com/kirinyoku/amparena/internal/service/signups"
	"github.com/kirinyoku/amparena/internal/service/tickets"
)

type Services struct {
	Purchase    *purchase.Service
	Tickets     *tickets.Service
	Signups     *signups.Service
	Competitors *competitors.Service
}

// TicketLedger is what both ticket services need from the ticket store.
type TicketLedger interface {
	purchase.Ledger
	tickets.Store
}

// Infra is the shared plumbing the services are built on. Cache, Activity
// and the limiters are nil when Redis is not configured.
type Infra struct {
	Tickets     TicketLedger
	Signups     signups.Store
	Competitors competitors.Store
	Files       filestore.Store

	Gateway    payment.Gateway
	Codes      purchase.CodeGenerator
	Documents  purchase.DocumentRenderer
	Invites    purchase.InviteBuilder
	Composer   *notify.Composer
	Dispatcher *notify.Dispatcher

	Cache        *redisrepo.Cache
	Activity     *redisrepo.ActivityPubSub
	IPLimiter    tickets.Limiter
	EmailLimiter tickets.Limiter

	Logger *slog.Logger
}

type Config struct {
	Purchase    purchase.Config
	Tickets     tickets.Config
	Signups     signups.Config
	Competitors competitors.Config
}

func NewServices(in Infra, cfg Config) *Services {
	p := purchase.New(purchase.Deps{
		Ledger:     in.Tickets,
		Gateway:    in.Gateway,
		Codes:      in.Codes,
		Documents:  in.Documents,
		Invites:    in.Invites,
		Composer:   in.Composer,
		Dispatcher: in.Dispatcher,
		Cache:      in.Cache,
		Activity:   in.Activity,
		Logger:     in.Logger,
	}, cfg.Purchase)

	return &Services{
		Purchase: p,
		Tickets: tickets.New(tickets.Deps{
			Store:        in.Tickets,
			Composer:     in.Composer,
			Dispatcher:   in.Dispatcher,
			Mailer:       p,
			IPLimiter:    in.IPLimiter,
			EmailLimiter: in.EmailLimiter,
			Cache:        in.Cache,
			Activity:     in.Activity,
			Logger:       in.Logger,
		}, cfg.Tickets),
		Signups: signups.New(signups.Deps{
			Store:      in.Signups,
			Composer:   in.Composer,
			Dispatcher: in.Dispatcher,
			Cache:      in.Cache,
			Activity:   in.Activity,
			Logger:     in.Logger,
		}, cfg.Signups),
		Competitors: competitors.New(competitors.Deps{
			Store:  in.Competitors,
			Files:  in.Files,
			Logger: in.Logger,
		}, cfg.Competitors),
	}
}

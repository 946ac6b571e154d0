package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/repository"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const ticketColumns = `code, email, kind, price_minor_units, payment_reference, status, created_at`

// Insert persists t in a single statement. CreatedAt is set here when zero.
//
// Returns:
//   - string: the stored ticket code.
//   - error: repository.ErrDuplicateCode if the code is taken.
//   - error: repository.ErrDuplicatePaymentReference if the payment
//     reference already has a ticket.
func (r *TicketRepo) Insert(ctx context.Context, t domain.Ticket) (string, error) {
	const op = "postgresrepo.TicketRepo.Insert"

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	var code string
	err := r.handle().QueryRow(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING code`,
		t.Code, t.Email, string(t.Kind), t.PriceMinorUnits, nullString(t.PaymentReference), string(t.Status), t.CreatedAt,
	).Scan(&code)
	if err != nil {
		return "", wrapDBErr(op, err)
	}

	return code, nil
}

func (r *TicketRepo) FindByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.FindByCode"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE code = $1`, code))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) FindByPaymentReference(ctx context.Context, ref string) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.FindByPaymentReference"

	if ref == "" {
		return nil, wrapDBErr(op, pgx.ErrNoRows)
	}

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE payment_reference = $1`, ref))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// FindByEmail returns every ticket for email, newest first, matching
// case-insensitively.
func (r *TicketRepo) FindByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.FindByEmail"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE lower(email) = lower($1)
		 ORDER BY created_at DESC, id DESC`,
		strings.TrimSpace(email),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectTickets(op, rows)
}

// MarkConfirmed moves a pending ticket to confirmed.
//
// Returns:
//   - error: repository.ErrNotFound if no ticket has the code.
//   - error: repository.ErrNothingToConfirm if the ticket is not pending.
func (r *TicketRepo) MarkConfirmed(ctx context.Context, code string) error {
	const op = "postgresrepo.TicketRepo.MarkConfirmed"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets SET status = $1 WHERE code = $2 AND status = $3`,
		string(domain.TicketConfirmed), code, string(domain.TicketPending),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.checkAffected(ctx, op, tag, code, repository.ErrNothingToConfirm)
}

func (r *TicketRepo) MarkCancelled(ctx context.Context, code string) error {
	const op = "postgresrepo.TicketRepo.MarkCancelled"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets SET status = $1 WHERE code = $2 AND status <> $1`,
		string(domain.TicketCancelled), code,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.checkAffected(ctx, op, tag, code, repository.ErrInvalidTransition)
}

func (r *TicketRepo) checkAffected(ctx context.Context, op string, tag pgconn.CommandTag, code string, noop error) error {
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE code = $1)`, code,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, noop)
}

func (r *TicketRepo) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR lower(email) = lower($2))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		string(f.Status), f.Email, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectTickets(op, rows)
}

func (r *TicketRepo) CountByStatus(ctx context.Context, status domain.TicketStatus) (int64, error) {
	const op = "postgresrepo.TicketRepo.CountByStatus"

	var n int64
	if err := r.handle().QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status = $1`, string(status),
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t    domain.Ticket
		ref  *string
		kind string
		st   string
	)

	if err := row.Scan(&t.Code, &t.Email, &kind, &t.PriceMinorUnits, &ref, &st, &t.CreatedAt); err != nil {
		return nil, err
	}

	t.Kind = domain.TicketKind(kind)
	t.Status = domain.TicketStatus(st)
	if ref != nil {
		t.PaymentReference = *ref
	}

	return &t, nil
}

func collectTickets(op string, rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

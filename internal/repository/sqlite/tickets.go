package sqliterepo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/repository"
)

type TicketRepo struct {
	pool *sql.DB
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
	const op = "sqliterepo.TicketRepo.Insert"

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := r.handle().ExecContext(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Code, t.Email, t.Kind, t.PriceMinorUnits, nullString(t.PaymentReference), t.Status, t.CreatedAt.UTC(),
	)
	if err != nil {
		return "", wrapDBErr(op, err)
	}

	return t.Code, nil
}

func (r *TicketRepo) FindByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	const op = "sqliterepo.TicketRepo.FindByCode"

	row := r.handle().QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE code = ?`, code)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) FindByPaymentReference(ctx context.Context, ref string) (*domain.Ticket, error) {
	const op = "sqliterepo.TicketRepo.FindByPaymentReference"

	if ref == "" {
		return nil, wrapDBErr(op, sql.ErrNoRows)
	}

	row := r.handle().QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE payment_reference = ?`, ref)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// FindByEmail returns every ticket for email, newest first. Email matching is
// case-insensitive.
func (r *TicketRepo) FindByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	const op = "sqliterepo.TicketRepo.FindByEmail"

	rows, err := r.handle().QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE email = ? COLLATE NOCASE
		 ORDER BY created_at DESC, id DESC`,
		strings.TrimSpace(email),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	return collectTickets(op, rows)
}

// MarkConfirmed moves a pending ticket to confirmed.
//
// Returns:
//   - error: repository.ErrNotFound if no ticket has the code.
//   - error: repository.ErrNothingToConfirm if the ticket is not pending.
func (r *TicketRepo) MarkConfirmed(ctx context.Context, code string) error {
	const op = "sqliterepo.TicketRepo.MarkConfirmed"

	return r.transition(ctx, op, code, domain.TicketPending, domain.TicketConfirmed)
}

// MarkCancelled cancels a pending or confirmed ticket.
func (r *TicketRepo) MarkCancelled(ctx context.Context, code string) error {
	const op = "sqliterepo.TicketRepo.MarkCancelled"

	db := r.handle()

	res, err := db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE code = ? AND status != ?`,
		domain.TicketCancelled, code, domain.TicketCancelled,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.checkAffected(ctx, op, res, code, repository.ErrInvalidTransition)
}

func (r *TicketRepo) transition(ctx context.Context, op, code string, from, to domain.TicketStatus) error {
	res, err := r.handle().ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE code = ? AND status = ?`,
		to, code, from,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.checkAffected(ctx, op, res, code, repository.ErrNothingToConfirm)
}

// checkAffected tells a missing ticket apart from one in the wrong status.
func (r *TicketRepo) checkAffected(ctx context.Context, op string, res sql.Result, code string, noop error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(op, err)
	}

	if n == 1 {
		return nil
	}

	var exists int
	err = r.handle().QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE code = ?`, code).Scan(&exists)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return wrapDBErr(op, noop)
}

func (r *TicketRepo) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	const op = "sqliterepo.TicketRepo.List"

	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1 = 1`
	var args []any

	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}

	if f.Email != "" {
		q += ` AND email = ? COLLATE NOCASE`
		args = append(args, f.Email)
	}

	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.handle().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	return collectTickets(op, rows)
}

func (r *TicketRepo) CountByStatus(ctx context.Context, status domain.TicketStatus) (int64, error) {
	const op = "sqliterepo.TicketRepo.CountByStatus"

	var n int64
	if err := r.handle().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status = ?`, status,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (*domain.Ticket, error) {
	var (
		t   domain.Ticket
		ref sql.NullString
	)

	if err := s.Scan(&t.Code, &t.Email, &t.Kind, &t.PriceMinorUnits, &ref, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}

	t.PaymentReference = ref.String

	return &t, nil
}

func collectTickets(op string, rows *sql.Rows) ([]domain.Ticket, error) {
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

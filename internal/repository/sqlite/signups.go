package sqliterepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/kirinyoku/amparena/internal/domain"
)

type SignupRepo struct {
	pool *sql.DB
	db   DB
}

func (r *SignupRepo) With(db DB) *SignupRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SignupRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create appends a signup. Returns repository.ErrConflict when the email is
// already registered.
func (r *SignupRepo) Create(ctx context.Context, email string) (*domain.Signup, error) {
	const op = "sqliterepo.SignupRepo.Create"

	s := domain.Signup{Email: email, CreatedAt: time.Now().UTC()}

	res, err := r.handle().ExecContext(ctx,
		`INSERT INTO signups (email, created_at, notified) VALUES (?, ?, 0)`,
		s.Email, s.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if s.ID, err = res.LastInsertId(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

func (r *SignupRepo) List(ctx context.Context, limit, offset int) ([]domain.Signup, error) {
	const op = "sqliterepo.SignupRepo.List"

	return r.query(ctx, op,
		`SELECT id, email, created_at, notified FROM signups
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// ListForNotification returns signups oldest first; with onlyPending it skips
// those already notified.
func (r *SignupRepo) ListForNotification(ctx context.Context, onlyPending bool, limit int) ([]domain.Signup, error) {
	const op = "sqliterepo.SignupRepo.ListForNotification"

	q := `SELECT id, email, created_at, notified FROM signups`
	if onlyPending {
		q += ` WHERE notified = 0`
	}
	q += ` ORDER BY created_at, id LIMIT ?`

	return r.query(ctx, op, q, limit)
}

func (r *SignupRepo) MarkNotified(ctx context.Context, id int64) error {
	const op = "sqliterepo.SignupRepo.MarkNotified"

	if _, err := r.handle().ExecContext(ctx,
		`UPDATE signups SET notified = 1 WHERE id = ?`, id,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SignupRepo) Count(ctx context.Context) (int64, error) {
	const op = "sqliterepo.SignupRepo.Count"

	var n int64
	if err := r.handle().QueryRowContext(ctx, `SELECT COUNT(*) FROM signups`).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *SignupRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Signup, error) {
	rows, err := r.handle().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Signup
	for rows.Next() {
		var s domain.Signup
		if err := rows.Scan(&s.ID, &s.Email, &s.CreatedAt, &s.Notified); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/amparena/internal/domain"
)

type SignupRepo struct {
	pool *pgxpool.Pool
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

func (r *SignupRepo) Create(ctx context.Context, email string) (*domain.Signup, error) {
	const op = "postgresrepo.SignupRepo.Create"

	s := domain.Signup{Email: email}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO signups (email) VALUES ($1)
		 RETURNING id, created_at`,
		email,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

func (r *SignupRepo) List(ctx context.Context, limit, offset int) ([]domain.Signup, error) {
	const op = "postgresrepo.SignupRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT id, email, created_at, notified FROM signups
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectSignups(op, rows)
}

func (r *SignupRepo) ListForNotification(ctx context.Context, onlyPending bool, limit int) ([]domain.Signup, error) {
	const op = "postgresrepo.SignupRepo.ListForNotification"

	rows, err := r.handle().Query(ctx,
		`SELECT id, email, created_at, notified FROM signups
		 WHERE NOT $1 OR NOT notified
		 ORDER BY created_at, id LIMIT $2`,
		onlyPending, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectSignups(op, rows)
}

func (r *SignupRepo) MarkNotified(ctx context.Context, id int64) error {
	const op = "postgresrepo.SignupRepo.MarkNotified"

	if _, err := r.handle().Exec(ctx, `UPDATE signups SET notified = true WHERE id = $1`, id); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SignupRepo) Count(ctx context.Context) (int64, error) {
	const op = "postgresrepo.SignupRepo.Count"

	var n int64
	if err := r.handle().QueryRow(ctx, `SELECT COUNT(*) FROM signups`).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func collectSignups(op string, rows pgx.Rows) ([]domain.Signup, error) {
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

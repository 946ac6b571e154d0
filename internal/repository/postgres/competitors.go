package postgresrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/amparena/internal/domain"
)

type CompetitorRepo struct {
	pool  *pgxpool.Pool
	db    DB
	store *Store
}

func (r *CompetitorRepo) With(db DB) *CompetitorRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CompetitorRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const competitorColumns = `id, email, full_name, github_username, twitter_username,
	profile_photo_url, bio, status, created_at, updated_at`

func (r *CompetitorRepo) Create(ctx context.Context, c domain.Competitor) (*domain.Competitor, error) {
	const op = "postgresrepo.CompetitorRepo.Create"

	if c.Status == "" {
		c.Status = domain.CompetitorPending
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO competitors (email, full_name, github_username, twitter_username,
			profile_photo_url, bio, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		c.Email, c.FullName, c.GithubUsername, c.TwitterUsername,
		c.ProfilePhotoURL, c.Bio, string(c.Status),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	c.Files = []domain.SubmissionFile{}

	return &c, nil
}

func (r *CompetitorRepo) Get(ctx context.Context, id int64) (*domain.Competitor, error) {
	const op = "postgresrepo.CompetitorRepo.Get"

	c, err := scanCompetitor(r.handle().QueryRow(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if c.Files, err = r.files(ctx, id); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CompetitorRepo) List(ctx context.Context, f domain.CompetitorFilter) ([]domain.Competitor, error) {
	const op = "postgresrepo.CompetitorRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+competitorColumns+` FROM competitors
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		string(f.Status), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Competitor, error) {
		c, err := scanCompetitor(row)
		if err != nil {
			return domain.Competitor{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	for i := range out {
		if out[i].Files, err = r.files(ctx, out[i].ID); err != nil {
			return nil, wrapDBErr(op, err)
		}
	}

	return out, nil
}

// Update applies the non-nil fields of p and returns the stored result.
func (r *CompetitorRepo) Update(ctx context.Context, id int64, p domain.CompetitorPatch) (*domain.Competitor, error) {
	const op = "postgresrepo.CompetitorRepo.Update"

	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}

	var out *domain.Competitor

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		tag, err := tx.Exec(ctx,
			`UPDATE competitors SET
				email             = COALESCE($8, email),
				full_name         = COALESCE($2, full_name),
				github_username   = COALESCE($3, github_username),
				twitter_username  = COALESCE($4, twitter_username),
				profile_photo_url = COALESCE($5, profile_photo_url),
				bio               = COALESCE($6, bio),
				status            = COALESCE($7, status),
				updated_at        = now()
			 WHERE id = $1`,
			id, p.FullName, p.GithubUsername, p.TwitterUsername, p.ProfilePhotoURL, p.Bio, status, p.Email,
		)
		if err != nil {
			return wrapDBErr(op, err)
		}

		if tag.RowsAffected() == 0 {
			return wrapDBErr(op, pgx.ErrNoRows)
		}

		out, err = r.With(tx).Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *CompetitorRepo) Delete(ctx context.Context, id int64) ([]domain.SubmissionFile, error) {
	const op = "postgresrepo.CompetitorRepo.Delete"

	var files []domain.SubmissionFile

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		cur, err := r.With(tx).Get(ctx, id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM competitors WHERE id = $1`, id); err != nil {
			return wrapDBErr(op, err)
		}

		files = cur.Files
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (r *CompetitorRepo) AppendFiles(ctx context.Context, id int64, files []domain.SubmissionFile) (*domain.Competitor, error) {
	const op = "postgresrepo.CompetitorRepo.AppendFiles"

	var out *domain.Competitor

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		now := time.Now().UTC()

		tag, err := tx.Exec(ctx, `UPDATE competitors SET updated_at = $2 WHERE id = $1`, id, now)
		if err != nil {
			return wrapDBErr(op, err)
		}

		if tag.RowsAffected() == 0 {
			return wrapDBErr(op, pgx.ErrNoRows)
		}

		for _, f := range files {
			if f.UploadedAt.IsZero() {
				f.UploadedAt = now
			}

			if _, err := tx.Exec(ctx,
				`INSERT INTO competitor_files (competitor_id, filename, original_name, url, size, mime_type, uploaded_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, f.Filename, f.OriginalName, f.URL, f.Size, f.MimeType, f.UploadedAt,
			); err != nil {
				return wrapDBErr(op, err)
			}
		}

		out, err = r.With(tx).Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *CompetitorRepo) files(ctx context.Context, id int64) ([]domain.SubmissionFile, error) {
	rows, err := r.handle().Query(ctx,
		`SELECT filename, original_name, url, size, mime_type, uploaded_at
		 FROM competitor_files WHERE competitor_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SubmissionFile, error) {
		var f domain.SubmissionFile
		err := row.Scan(&f.Filename, &f.OriginalName, &f.URL, &f.Size, &f.MimeType, &f.UploadedAt)
		return f, err
	})
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []domain.SubmissionFile{}
	}

	return out, nil
}

func scanCompetitor(row pgx.Row) (*domain.Competitor, error) {
	var (
		c  domain.Competitor
		st string
	)

	if err := row.Scan(&c.ID, &c.Email, &c.FullName, &c.GithubUsername, &c.TwitterUsername,
		&c.ProfilePhotoURL, &c.Bio, &st, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	c.Status = domain.CompetitorStatus(st)

	return &c, nil
}

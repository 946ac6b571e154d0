package sqliterepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/kirinyoku/amparena/internal/domain"
)

type CompetitorRepo struct {
	pool  *sql.DB
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

// Create stores a new competitor with no files. Returns
// repository.ErrConflict when the email is already registered.
func (r *CompetitorRepo) Create(ctx context.Context, c domain.Competitor) (*domain.Competitor, error) {
	const op = "sqliterepo.CompetitorRepo.Create"

	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = domain.CompetitorPending
	}

	res, err := r.handle().ExecContext(ctx,
		`INSERT INTO competitors (email, full_name, github_username, twitter_username,
			profile_photo_url, bio, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Email, c.FullName, c.GithubUsername, c.TwitterUsername,
		c.ProfilePhotoURL, c.Bio, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if c.ID, err = res.LastInsertId(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	c.Files = []domain.SubmissionFile{}

	return &c, nil
}

// Get returns the competitor with its files in upload order.
func (r *CompetitorRepo) Get(ctx context.Context, id int64) (*domain.Competitor, error) {
	const op = "sqliterepo.CompetitorRepo.Get"

	row := r.handle().QueryRowContext(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE id = ?`, id)

	c, err := scanCompetitor(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if c.Files, err = r.files(ctx, id); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CompetitorRepo) List(ctx context.Context, f domain.CompetitorFilter) ([]domain.Competitor, error) {
	const op = "sqliterepo.CompetitorRepo.List"

	q := `SELECT ` + competitorColumns + ` FROM competitors`
	var args []any

	if f.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, f.Status)
	}

	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.handle().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	var out []domain.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			rows.Close()
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *c)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapDBErr(op, err)
	}

	rows.Close()

	for i := range out {
		if out[i].Files, err = r.files(ctx, out[i].ID); err != nil {
			return nil, wrapDBErr(op, err)
		}
	}

	return out, nil
}

// Update applies the non-nil fields of p and returns the stored result.
func (r *CompetitorRepo) Update(ctx context.Context, id int64, p domain.CompetitorPatch) (*domain.Competitor, error) {
	const op = "sqliterepo.CompetitorRepo.Update"

	var out *domain.Competitor

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		repo := r.With(tx)

		cur, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		applyPatch(cur, p)
		cur.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx,
			`UPDATE competitors SET email = ?, full_name = ?, github_username = ?, twitter_username = ?,
				profile_photo_url = ?, bio = ?, status = ?, updated_at = ?
			 WHERE id = ?`,
			cur.Email, cur.FullName, cur.GithubUsername, cur.TwitterUsername,
			cur.ProfilePhotoURL, cur.Bio, cur.Status, cur.UpdatedAt, id,
		); err != nil {
			return wrapDBErr(op, err)
		}

		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes the competitor and, by cascade, its file rows.
// The removed files are returned so the caller can clean up storage.
func (r *CompetitorRepo) Delete(ctx context.Context, id int64) ([]domain.SubmissionFile, error) {
	const op = "sqliterepo.CompetitorRepo.Delete"

	var files []domain.SubmissionFile

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		cur, err := r.With(tx).Get(ctx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM competitors WHERE id = ?`, id); err != nil {
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

// AppendFiles records uploaded files and bumps updated_at atomically.
func (r *CompetitorRepo) AppendFiles(ctx context.Context, id int64, files []domain.SubmissionFile) (*domain.Competitor, error) {
	const op = "sqliterepo.CompetitorRepo.AppendFiles"

	var out *domain.Competitor

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		now := time.Now().UTC()

		res, err := tx.ExecContext(ctx, `UPDATE competitors SET updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return wrapDBErr(op, err)
		}

		if n, err := res.RowsAffected(); err != nil {
			return wrapDBErr(op, err)
		} else if n == 0 {
			return wrapDBErr(op, sql.ErrNoRows)
		}

		for _, f := range files {
			if f.UploadedAt.IsZero() {
				f.UploadedAt = now
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO competitor_files (competitor_id, filename, original_name, url, size, mime_type, uploaded_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, f.Filename, f.OriginalName, f.URL, f.Size, f.MimeType, f.UploadedAt.UTC(),
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
	rows, err := r.handle().QueryContext(ctx,
		`SELECT filename, original_name, url, size, mime_type, uploaded_at
		 FROM competitor_files WHERE competitor_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := []domain.SubmissionFile{}
	for rows.Next() {
		var f domain.SubmissionFile
		if err := rows.Scan(&f.Filename, &f.OriginalName, &f.URL, &f.Size, &f.MimeType, &f.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	return out, rows.Err()
}

func scanCompetitor(s scanner) (*domain.Competitor, error) {
	var c domain.Competitor

	if err := s.Scan(&c.ID, &c.Email, &c.FullName, &c.GithubUsername, &c.TwitterUsername,
		&c.ProfilePhotoURL, &c.Bio, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

func applyPatch(c *domain.Competitor, p domain.CompetitorPatch) {
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.FullName != nil {
		c.FullName = *p.FullName
	}
	if p.GithubUsername != nil {
		c.GithubUsername = *p.GithubUsername
	}
	if p.TwitterUsername != nil {
		c.TwitterUsername = *p.TwitterUsername
	}
	if p.ProfilePhotoURL != nil {
		c.ProfilePhotoURL = *p.ProfilePhotoURL
	}
	if p.Bio != nil {
		c.Bio = *p.Bio
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

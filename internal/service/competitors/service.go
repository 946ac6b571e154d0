package competitors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/filestore"
	"github.com/kirinyoku/amparena/internal/repository"
)

const (
	DefaultMaxFiles    = 5
	DefaultMaxFileSize = 10 << 20
)

var (
	allowedExt = map[string]bool{
		".pdf": true, ".zip": true, ".doc": true, ".docx": true,
		".jpg": true, ".jpeg": true, ".png": true,
	}
	allowedMIME = []string{
		"application/pdf",
		"application/zip",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/jpeg",
		"image/png",
	}
)

type Store interface {
	Create(ctx context.Context, c domain.Competitor) (*domain.Competitor, error)
	Get(ctx context.Context, id int64) (*domain.Competitor, error)
	List(ctx context.Context, f domain.CompetitorFilter) ([]domain.Competitor, error)
	Update(ctx context.Context, id int64, p domain.CompetitorPatch) (*domain.Competitor, error)
	Delete(ctx context.Context, id int64) ([]domain.SubmissionFile, error)
	AppendFiles(ctx context.Context, id int64, files []domain.SubmissionFile) (*domain.Competitor, error)
}

type Config struct {
	MaxFiles     int
	MaxFileSize  int64
	DefaultLimit int
	MaxLimit     int
}

type Deps struct {
	Store  Store
	Files  filestore.Store
	Logger *slog.Logger
}

type Service struct {
	Deps
	cfg Config
}

func New(deps Deps, cfg Config) *Service {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{Deps: deps, cfg: cfg}
}

// Limits reports the upload limits so transports can bound request bodies.
func (s *Service) Limits() (maxFiles int, maxFileSize int64) {
	return s.cfg.MaxFiles, s.cfg.MaxFileSize
}

// Register creates a competitor profile in the pending state.
//
// Returns:
//   - error: *competitors.ValidationError for a bad profile.
//   - error: competitors.ErrAlreadyRegistered if the email is taken.
func (s *Service) Register(ctx context.Context, in ProfileInput) (*domain.Competitor, error) {
	const op = "service.competitors.Register"

	in = in.normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Err: err})
	}

	c, err := s.Store.Create(ctx, domain.Competitor{
		Email:           in.Email,
		FullName:        in.FullName,
		GithubUsername:  in.GithubUsername,
		TwitterUsername: in.TwitterUsername,
		ProfilePhotoURL: in.ProfilePhotoURL,
		Bio:             in.Bio,
		Status:          domain.CompetitorPending,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	s.Logger.Info("competitor registered", slog.Int64("competitor_id", c.ID))

	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Competitor, error) {
	const op = "service.competitors.Get"

	c, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	return c, nil
}

func (s *Service) List(ctx context.Context, f domain.CompetitorFilter) ([]domain.Competitor, error) {
	const op = "service.competitors.List"

	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Err: fmt.Errorf("status: invalid status value")})
	}
	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultLimit
	}
	if f.Limit > s.cfg.MaxLimit {
		f.Limit = s.cfg.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	out, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out == nil {
		out = []domain.Competitor{}
	}

	return out, nil
}

// Update replaces the profile of competitor id.
//
// Returns:
//   - error: *competitors.ValidationError for a bad profile or status.
//   - error: competitors.ErrNotFound if id does not exist.
//   - error: competitors.ErrAlreadyRegistered if the new email is taken.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*domain.Competitor, error) {
	const op = "service.competitors.Update"

	in.ProfileInput = in.ProfileInput.normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Err: err})
	}

	c, err := s.Store.Update(ctx, id, in.patch())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	return c, nil
}

// Delete removes the competitor and then its stored files. Storage errors
// are logged; the competitor is gone either way.
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "service.competitors.Delete"

	files, err := s.Store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	s.removeObjects(ctx, files)

	return nil
}

// Upload is one file of a submission as received from the client.
type Upload struct {
	Name string
	Body []byte
}

// AddFiles checks, stores and records a batch of submission files.
// Either the whole batch is recorded or none of it is.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: competitor the files belong to.
//   - uploads: 1..MaxFiles files of at most MaxFileSize bytes each.
//
// Returns:
//   - []domain.SubmissionFile: the recorded files.
//   - error: competitors.ErrNoFiles, ErrTooManyFiles for a bad batch size.
//   - error: *competitors.FileError wrapping ErrFileTooLarge or ErrUnsupportedFileType.
//   - error: competitors.ErrNotFound if id does not exist.
func (s *Service) AddFiles(ctx context.Context, id int64, uploads []Upload) ([]domain.SubmissionFile, error) {
	const op = "service.competitors.AddFiles"

	switch {
	case len(uploads) == 0:
		return nil, fmt.Errorf("%s: %w", op, ErrNoFiles)
	case len(uploads) > s.cfg.MaxFiles:
		return nil, fmt.Errorf("%s: %w: at most %d", op, ErrTooManyFiles, s.cfg.MaxFiles)
	}

	types := make([]string, len(uploads))
	for i, u := range uploads {
		mt, err := s.check(u)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		types[i] = mt
	}

	if _, err := s.Store.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	files := make([]domain.SubmissionFile, 0, len(uploads))
	for i, u := range uploads {
		key := filestore.ObjectKey(id, u.Name)

		url, err := s.Files.Put(ctx, key, types[i], u.Body)
		if err != nil {
			s.removeObjects(ctx, files)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		files = append(files, domain.SubmissionFile{
			Filename:     key,
			OriginalName: filepath.Base(u.Name),
			URL:          url,
			Size:         int64(len(u.Body)),
			MimeType:     types[i],
		})
	}

	c, err := s.Store.AppendFiles(ctx, id, files)
	if err != nil {
		s.removeObjects(ctx, files)
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	s.Logger.Info("competitor files uploaded",
		slog.Int64("competitor_id", id),
		slog.Int("count", len(files)),
	)

	return c.Files[len(c.Files)-len(files):], nil
}

func (s *Service) check(u Upload) (string, error) {
	if int64(len(u.Body)) > s.cfg.MaxFileSize {
		return "", &FileError{Name: u.Name, Err: ErrFileTooLarge}
	}

	if !allowedExt[strings.ToLower(filepath.Ext(u.Name))] {
		return "", &FileError{Name: u.Name, Err: ErrUnsupportedFileType}
	}

	mt := mimetype.Detect(u.Body)
	for m := mt; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), allowedMIME...) {
			return mt.String(), nil
		}
	}

	return "", &FileError{Name: u.Name, Err: ErrUnsupportedFileType}
}

func (s *Service) removeObjects(ctx context.Context, files []domain.SubmissionFile) {
	for _, f := range files {
		if err := s.Files.Delete(ctx, f.Filename); err != nil {
			s.Logger.Warn("remove submission file", slog.String("key", f.Filename), slog.Any("error", err))
		}
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrAlreadyRegistered
	}
	return err
}

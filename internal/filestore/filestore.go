package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrInvalidKey = errors.New("invalid object key")

// Store keeps uploaded submission files.
type Store interface {
	// Put writes body under key and returns the public URL.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds a collision-free key for a competitor upload, keeping a
// readable slug of the original name and its extension.
func ObjectKey(competitorID int64, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := slug.Make(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "file"
	}
	if len(base) > 60 {
		base = base[:60]
	}

	return fmt.Sprintf("competitors/%d/%s-%s%s", competitorID, uuid.NewString()[:8], base, ext)
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != key {
		return "", ErrInvalidKey
	}
	return k, nil
}

// Local stores files under a directory served at PublicBaseURL.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, publicBaseURL string) (*Local, error) {
	const op = "filestore.NewLocal"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Local{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) Put(ctx context.Context, key, _ string, body []byte) (string, error) {
	const op = "filestore.Local.Put"

	k, err := cleanKey(key)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	dst := filepath.Join(l.dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if err := os.WriteFile(dst, body, 0o644); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return l.baseURL + "/" + k, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	const op = "filestore.Local.Delete"

	k, err := cleanKey(key)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(k))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

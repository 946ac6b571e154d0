package competitors

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/filestore"
	sqliterepo "github.com/kirinyoku/amparena/internal/repository/sqlite"
	"github.com/kirinyoku/amparena/internal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFiles struct {
	filestore.Store
	failAfter int
	puts      int
}

func (f *failingFiles) Put(ctx context.Context, key, ct string, body []byte) (string, error) {
	f.puts++
	if f.puts > f.failAfter {
		return "", errors.New("bucket unavailable")
	}
	return f.Store.Put(ctx, key, ct, body)
}

type fixture struct {
	svc  *Service
	dir  string
	repo *sqliterepo.CompetitorRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.New(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)

	st := sqliterepo.NewStore(db)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	dir := t.TempDir()
	files, err := filestore.NewLocal(dir, "/uploads")
	require.NoError(t, err)

	svc := New(Deps{Store: st.Competitors(), Files: files}, Config{})

	return &fixture{svc: svc, dir: dir, repo: st.Competitors()}
}

func pdfBody() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
}

func pngBody(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func zipBody(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("main.go")
	require.NoError(t, err)
	_, err = w.Write([]byte("package main\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func (f *fixture) register(t *testing.T, email string) *domain.Competitor {
	t.Helper()
	c, err := f.svc.Register(context.Background(), ProfileInput{Email: email, FullName: "Ada Lovelace"})
	require.NoError(t, err)
	return c
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.WalkDir(f.dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			out = append(out, p)
		}
		return err
	}))
	return out
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Register(ctx, ProfileInput{
		Email:          " Ada@Example.com ",
		FullName:       "Ada Lovelace",
		GithubUsername: "@ada",
		Bio:            "first programmer",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "ada", c.GithubUsername)
	assert.Equal(t, domain.CompetitorPending, c.Status)
	assert.NotNil(t, c.Files)

	_, err = f.svc.Register(ctx, ProfileInput{Email: "ada@example.com", FullName: "Again"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = f.svc.Register(ctx, ProfileInput{Email: "nope", FullName: ""})
	require.ErrorIs(t, err, ErrValidation)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "email")
	assert.Contains(t, ve.Error(), "full_name")

	_, err = f.svc.Register(ctx, ProfileInput{Email: "b@example.com", FullName: "B", ProfilePhotoURL: "not a url"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	f.register(t, "b@example.com")

	got, err := f.svc.Update(ctx, a.ID, UpdateInput{
		ProfileInput: ProfileInput{Email: "a2@example.com", FullName: "Ada L."},
		Status:       domain.CompetitorQualified,
	})
	require.NoError(t, err)
	assert.Equal(t, "a2@example.com", got.Email)
	assert.Equal(t, domain.CompetitorQualified, got.Status)

	// empty status keeps the current one
	got, err = f.svc.Update(ctx, a.ID, UpdateInput{ProfileInput: ProfileInput{Email: "a2@example.com", FullName: "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, domain.CompetitorQualified, got.Status)

	_, err = f.svc.Update(ctx, a.ID, UpdateInput{
		ProfileInput: ProfileInput{Email: "a2@example.com", FullName: "Ada"},
		Status:       "champion",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Update(ctx, a.ID, UpdateInput{ProfileInput: ProfileInput{Email: "b@example.com", FullName: "Ada"}})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = f.svc.Update(ctx, 999, UpdateInput{ProfileInput: ProfileInput{Email: "z@example.com", FullName: "Z"}})
	assert.ErrorIs(t, err, ErrNotFound)

	qualified, err := f.svc.List(ctx, domain.CompetitorFilter{Status: domain.CompetitorQualified})
	require.NoError(t, err)
	require.Len(t, qualified, 1)
	assert.Equal(t, a.ID, qualified[0].ID)

	all, err := f.svc.List(ctx, domain.CompetitorFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(ctx, domain.CompetitorFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.register(t, "a@example.com")

	files, err := f.svc.AddFiles(ctx, c.ID, []Upload{
		{Name: "Pitch Deck.pdf", Body: pdfBody()},
		{Name: "avatar.png", Body: pngBody(t)},
		{Name: "source.zip", Body: zipBody(t)},
	})
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "Pitch Deck.pdf", files[0].OriginalName)
	assert.Equal(t, "application/pdf", files[0].MimeType)
	assert.True(t, strings.HasPrefix(files[0].URL, "/uploads/competitors/"))
	assert.True(t, strings.HasSuffix(files[0].Filename, "-pitch-deck.pdf"))
	assert.Equal(t, "image/png", files[1].MimeType)
	assert.Equal(t, "application/zip", files[2].MimeType)

	assert.Len(t, f.storedFiles(t), 3)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Files, 3)
}

func TestAddFiles_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.register(t, "a@example.com")

	_, err := f.svc.AddFiles(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	six := make([]Upload, 6)
	for i := range six {
		six[i] = Upload{Name: "f.pdf", Body: pdfBody()}
	}
	_, err = f.svc.AddFiles(ctx, c.ID, six)
	assert.ErrorIs(t, err, ErrTooManyFiles)

	big := append(pdfBody(), make([]byte, DefaultMaxFileSize)...)
	_, err = f.svc.AddFiles(ctx, c.ID, []Upload{{Name: "big.pdf", Body: big}})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// extension says pdf, content says text
	_, err = f.svc.AddFiles(ctx, c.ID, []Upload{{Name: "fake.pdf", Body: []byte("just some text")}})
	require.ErrorIs(t, err, ErrUnsupportedFileType)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "fake.pdf", fe.Name)

	_, err = f.svc.AddFiles(ctx, c.ID, []Upload{{Name: "run.exe", Body: pdfBody()}})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = f.svc.AddFiles(ctx, 999, []Upload{{Name: "a.pdf", Body: pdfBody()}})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.storedFiles(t))
}

func TestAddFiles_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.register(t, "a@example.com")

	f.svc.Files = &failingFiles{Store: f.svc.Files, failAfter: 1}

	_, err := f.svc.AddFiles(ctx, c.ID, []Upload{
		{Name: "a.pdf", Body: pdfBody()},
		{Name: "b.pdf", Body: pdfBody()},
	})
	require.Error(t, err)

	assert.Empty(t, f.storedFiles(t))

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func TestDeleteRemovesFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.register(t, "a@example.com")

	_, err := f.svc.AddFiles(ctx, c.ID, []Upload{{Name: "a.pdf", Body: pdfBody()}})
	require.NoError(t, err)
	require.Len(t, f.storedFiles(t), 1)

	require.NoError(t, f.svc.Delete(ctx, c.ID))
	assert.Empty(t, f.storedFiles(t))

	_, err = f.svc.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, c.ID), ErrNotFound)
}

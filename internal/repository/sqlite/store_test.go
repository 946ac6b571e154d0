package sqliterepo

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/repository"
	"github.com/kirinyoku/amparena/internal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.New(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)

	st := NewStore(db)
	require.NoError(t, st.Migrate(ctx))
	// migrations are re-runnable
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() { st.Close() })

	return st
}

func makeTicket(code, email, ref string, status domain.TicketStatus, at time.Time) domain.Ticket {
	return domain.Ticket{
		Code:             code,
		Email:            email,
		Kind:             domain.KindGeneralAdmission,
		PriceMinorUnits:  2000,
		PaymentReference: ref,
		Status:           status,
		CreatedAt:        at,
	}
}

func TestTicketRepo_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()

	created := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	code, err := repo.Insert(ctx, makeTicket("AMP-ABC-0000000001", "buyer@example.com", "pi_1", domain.TicketConfirmed, created))
	require.NoError(t, err)
	assert.Equal(t, "AMP-ABC-0000000001", code)

	got, err := repo.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", got.Email)
	assert.Equal(t, domain.TicketConfirmed, got.Status)
	assert.Equal(t, int64(2000), got.PriceMinorUnits)
	assert.True(t, created.Equal(got.CreatedAt))

	byRef, err := repo.FindByPaymentReference(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, code, byRef.Code)

	_, err = repo.FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.FindByPaymentReference(ctx, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTicketRepo_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()
	now := time.Now()

	_, err := repo.Insert(ctx, makeTicket("AMP-1", "a@example.com", "pi_1", domain.TicketConfirmed, now))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, makeTicket("AMP-1", "b@example.com", "pi_2", domain.TicketConfirmed, now))
	assert.ErrorIs(t, err, repository.ErrDuplicateCode)

	_, err = repo.Insert(ctx, makeTicket("AMP-2", "b@example.com", "pi_1", domain.TicketConfirmed, now))
	assert.ErrorIs(t, err, repository.ErrDuplicatePaymentReference)

	// tickets without a reference do not collide with each other
	_, err = repo.Insert(ctx, makeTicket("AMP-3", "c@example.com", "", domain.TicketPending, now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, makeTicket("AMP-4", "c@example.com", "", domain.TicketPending, now))
	require.NoError(t, err)
}

func TestTicketRepo_ConcurrentSameReference(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()

	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := "AMP-RACE-" + string(rune('A'+i))
			_, err := repo.Insert(ctx, makeTicket(code, "race@example.com", "pi_race", domain.TicketConfirmed, time.Now()))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repository.ErrDuplicatePaymentReference)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, wins)

	got, err := repo.FindByEmail(ctx, "race@example.com")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTicketRepo_FindByEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, code := range []string{"AMP-OLD", "AMP-MID", "AMP-NEW"} {
		_, err := repo.Insert(ctx, makeTicket(code, "fan@example.com", "pi_"+code, domain.TicketConfirmed, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, makeTicket("AMP-OTHER", "other@example.com", "pi_other", domain.TicketConfirmed, base))
	require.NoError(t, err)

	got, err := repo.FindByEmail(ctx, "  FAN@Example.com ")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "AMP-NEW", got[0].Code)
	assert.Equal(t, "AMP-OLD", got[2].Code)

	none, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTicketRepo_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()

	_, err := repo.Insert(ctx, makeTicket("AMP-P", "p@example.com", "", domain.TicketPending, time.Now()))
	require.NoError(t, err)

	require.NoError(t, repo.MarkConfirmed(ctx, "AMP-P"))
	assert.ErrorIs(t, repo.MarkConfirmed(ctx, "AMP-P"), repository.ErrNothingToConfirm)
	assert.ErrorIs(t, repo.MarkConfirmed(ctx, "AMP-NONE"), repository.ErrNotFound)

	require.NoError(t, repo.MarkCancelled(ctx, "AMP-P"))
	assert.ErrorIs(t, repo.MarkCancelled(ctx, "AMP-P"), repository.ErrInvalidTransition)
	assert.ErrorIs(t, repo.MarkCancelled(ctx, "AMP-NONE"), repository.ErrNotFound)

	got, err := repo.FindByCode(ctx, "AMP-P")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCancelled, got.Status)
}

func TestTicketRepo_ListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tickets()
	now := time.Now()

	_, err := repo.Insert(ctx, makeTicket("AMP-1", "a@example.com", "pi_1", domain.TicketConfirmed, now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, makeTicket("AMP-2", "b@example.com", "pi_2", domain.TicketConfirmed, now.Add(time.Second)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, makeTicket("AMP-3", "b@example.com", "", domain.TicketPending, now.Add(2*time.Second)))
	require.NoError(t, err)

	n, err := repo.CountByStatus(ctx, domain.TicketConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := repo.List(ctx, domain.TicketFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "AMP-3", all[0].Code)

	confirmedB, err := repo.List(ctx, domain.TicketFilter{Status: domain.TicketConfirmed, Email: "B@example.com", Limit: 10})
	require.NoError(t, err)
	require.Len(t, confirmedB, 1)
	assert.Equal(t, "AMP-2", confirmedB[0].Code)

	page, err := repo.List(ctx, domain.TicketFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "AMP-2", page[0].Code)
}

func TestSignupRepo(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Signups()

	first, err := repo.Create(ctx, "one@example.com")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = repo.Create(ctx, "one@example.com")
	assert.ErrorIs(t, err, repository.ErrConflict)

	second, err := repo.Create(ctx, "two@example.com")
	require.NoError(t, err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.MarkNotified(ctx, first.ID))

	pending, err := repo.ListForNotification(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	everyone, err := repo.ListForNotification(ctx, false, 10)
	require.NoError(t, err)
	assert.Len(t, everyone, 2)

	listed, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.True(t, listed[1].Notified)
}

func TestCompetitorRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Competitors()

	c, err := repo.Create(ctx, domain.Competitor{Email: "dev@example.com", FullName: "Dev One", GithubUsername: "devone"})
	require.NoError(t, err)
	assert.Equal(t, domain.CompetitorPending, c.Status)
	assert.Empty(t, c.Files)

	_, err = repo.Create(ctx, domain.Competitor{Email: "dev@example.com", FullName: "Dup"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	status := domain.CompetitorFinalist
	bio := "builds things"
	updated, err := repo.Update(ctx, c.ID, domain.CompetitorPatch{Status: &status, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, domain.CompetitorFinalist, updated.Status)
	assert.Equal(t, "builds things", updated.Bio)
	assert.Equal(t, "devone", updated.GithubUsername)

	withFiles, err := repo.AppendFiles(ctx, c.ID, []domain.SubmissionFile{
		{Filename: "a.pdf", OriginalName: "A.pdf", URL: "/uploads/a.pdf", Size: 10, MimeType: "application/pdf"},
		{Filename: "b.png", OriginalName: "B.png", URL: "/uploads/b.png", Size: 20, MimeType: "image/png"},
	})
	require.NoError(t, err)
	require.Len(t, withFiles.Files, 2)
	assert.Equal(t, "a.pdf", withFiles.Files[0].Filename)

	_, err = repo.AppendFiles(ctx, 9999, []domain.SubmissionFile{{Filename: "x"}})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	finalists, err := repo.List(ctx, domain.CompetitorFilter{Status: domain.CompetitorFinalist, Limit: 10})
	require.NoError(t, err)
	require.Len(t, finalists, 1)
	assert.Len(t, finalists[0].Files, 2)

	removed, err := repo.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = repo.Get(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Delete(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

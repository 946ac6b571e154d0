package signups

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirinyoku/amparena/internal/calendar"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/render"
	sqliterepo "github.com/kirinyoku/amparena/internal/repository/sqlite"
	"github.com/kirinyoku/amparena/internal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Deliver(ctx context.Context, msg mail.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func to(addr string) any {
	return mock.MatchedBy(func(msg mail.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == addr
	})
}

func newService(t *testing.T, cfg Config) (*Service, *sqliterepo.SignupRepo, *MockSender) {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.New(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)

	st := sqliterepo.NewStore(db)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	ev := domain.Event{
		Name:      "Amp Arena",
		DateLabel: "October 29th, 2025",
		Venue:     "The Midway SF",
		Starts:    time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC),
		Ends:      time.Date(2025, 10, 29, 22, 0, 0, 0, time.UTC),
	}

	composer, err := notify.NewComposer(notify.Config{Event: ev}, render.New(), calendar.New(calendar.Config{}), nil)
	require.NoError(t, err)

	sender := new(MockSender)

	svc := New(Deps{
		Store:      st.Signups(),
		Composer:   composer,
		Dispatcher: notify.NewDispatcher(sender, time.Second, nil),
	}, cfg)

	return svc, st.Signups(), sender
}

func TestCreate(t *testing.T) {
	svc, _, sender := newService(t, Config{})
	ctx := context.Background()

	su, err := svc.Create(ctx, "  Fan@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", su.Email)
	assert.NotZero(t, su.ID)

	_, err = svc.Create(ctx, "fan@example.com")
	assert.ErrorIs(t, err, ErrAlreadySignedUp)

	_, err = svc.Create(ctx, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sender.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestCreate_AlertsOrganizers(t *testing.T) {
	svc, _, sender := newService(t, Config{AlertEmail: "ops@amparena.com"})

	sender.On("Deliver", mock.Anything, mock.MatchedBy(func(msg mail.Message) bool {
		return msg.Tag == notify.TagSignupAlert && msg.To[0] == "ops@amparena.com"
	})).Return("", errors.New("smtp down")).Once()

	// alert failures do not fail the signup
	_, err := svc.Create(context.Background(), "fan@example.com")
	require.NoError(t, err)

	sender.AssertExpectations(t)
}

func TestList(t *testing.T) {
	svc, _, _ := newService(t, Config{MaxLimit: 2})
	ctx := context.Background()

	empty, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)

	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := svc.Create(ctx, e)
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNotifyPending(t *testing.T) {
	svc, repo, sender := newService(t, Config{})
	ctx := context.Background()

	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := svc.Create(ctx, e)
		require.NoError(t, err)
	}

	sender.On("Deliver", mock.Anything, to("a@example.com")).Return("<a>", nil).Once()
	sender.On("Deliver", mock.Anything, to("b@example.com")).Return("", errors.New("bounced")).Once()
	sender.On("Deliver", mock.Anything, to("c@example.com")).Return("<c>", nil).Once()

	sum, err := svc.NotifyPending(ctx, notify.TemplateWelcome, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Sent: 2, Failed: 1}, sum)

	pending, err := repo.ListForNotification(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b@example.com", pending[0].Email)

	// second pass only retries the failed one
	sender.On("Deliver", mock.Anything, to("b@example.com")).Return("<b>", nil).Once()

	sum, err = svc.NotifyPending(ctx, notify.TemplateWelcome, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1}, sum)

	sender.AssertExpectations(t)
}

func TestNotifyPending_All(t *testing.T) {
	svc, repo, sender := newService(t, Config{})
	ctx := context.Background()

	su, err := svc.Create(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.MarkNotified(ctx, su.ID))

	sender.On("Deliver", mock.Anything, mock.MatchedBy(func(msg mail.Message) bool {
		return msg.Tag == notify.TemplateReminder
	})).Return("<r>", nil).Once()

	sum, err := svc.NotifyPending(ctx, notify.TemplateReminder, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)

	_, err = svc.NotifyPending(ctx, "bogus", true)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	sender.AssertExpectations(t)
}

func TestScheduler_DisabledReturnsOnCancel(t *testing.T) {
	svc, _, _ := newService(t, Config{})

	s := NewScheduler(svc, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	svc, repo, sender := newService(t, Config{})

	_, err := svc.Create(context.Background(), "a@example.com")
	require.NoError(t, err)

	sender.On("Deliver", mock.Anything, to("a@example.com")).Return("<a>", nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewScheduler(svc, 50*time.Millisecond, nil).Run(ctx) }()

	assert.Eventually(t, func() bool {
		pending, err := repo.ListForNotification(context.Background(), true, 10)
		return err == nil && len(pending) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	sender.AssertExpectations(t)
}

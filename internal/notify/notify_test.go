package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirinyoku/amparena/internal/calendar"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	failFor map[string]bool
}

func (s stubRenderer) RenderTicketDocument(t domain.Ticket, _ domain.Event) ([]byte, error) {
	if s.failFor[t.Code] {
		return nil, errors.New("render failed")
	}
	return []byte("%PDF-" + t.Code), nil
}

type panicRenderer struct{}

func (panicRenderer) RenderTicketDocument(domain.Ticket, domain.Event) ([]byte, error) {
	panic("boom")
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Deliver(ctx context.Context, msg mail.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func testEvent() domain.Event {
	return domain.Event{
		Name:           "Amp Arena",
		DateLabel:      "October 29th, 2025",
		Venue:          "The Midway SF",
		Address:        "900 Marin St, San Francisco, CA 94124",
		Starts:         time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC),
		Ends:           time.Date(2025, 10, 29, 22, 0, 0, 0, time.UTC),
		CurrencySymbol: "$",
		SupportEmail:   "tickets@amparena.com",
		Tagline:        "Where Code Meets Competition",
		SiteURL:        "https://build-olympics.onrender.com",
	}
}

func ticket(code string, created time.Time) domain.Ticket {
	return domain.Ticket{
		Code:            code,
		Email:           "a@example.com",
		Kind:            domain.KindGeneralAdmission,
		PriceMinorUnits: 2000,
		Status:          domain.TicketConfirmed,
		CreatedAt:       created,
	}
}

func newTestComposer(t *testing.T, r DocumentRenderer) *Composer {
	t.Helper()

	c, err := NewComposer(Config{Event: testEvent(), FilePrefix: "amp-arena"}, r, calendar.New(calendar.Config{}), nil)
	require.NoError(t, err)

	return c
}

func attachmentsByExt(msg mail.Message, ext string) []mail.Attachment {
	var out []mail.Attachment
	for _, a := range msg.Attachments {
		if strings.HasSuffix(a.Filename, ext) {
			out = append(out, a)
		}
	}
	return out
}

func TestComposeTicketMessage(t *testing.T) {
	c := newTestComposer(t, stubRenderer{})
	tk := ticket("AMP-1-AAAA", time.Now())

	msg := c.ComposeTicketMessage(tk, testEvent(), []byte("%PDF"), []byte("BEGIN:VCALENDAR"))

	assert.Equal(t, []string{"a@example.com"}, msg.To)
	assert.Equal(t, "Your Amp Arena Ticket - Ready for October 29th, 2025!", msg.Subject)
	assert.Equal(t, TagTicket, msg.Tag)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "amp-arena-ticket-AMP-1-AAAA.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, MimePDF, msg.Attachments[0].MimeType)
	assert.Equal(t, "amp-arena-ticket-AMP-1-AAAA.ics", msg.Attachments[1].Filename)

	for _, want := range []string{"AMP-1-AAAA", "$20.00", "General Admission", "The Midway SF", "October 29th, 2025", "calendar.google.com"} {
		assert.Contains(t, msg.HTMLBody, want)
	}
}

func TestComposeTicketMessage_MissingArtifacts(t *testing.T) {
	c := newTestComposer(t, stubRenderer{})

	msg := c.ComposeTicketMessage(ticket("AMP-1-AAAA", time.Now()), testEvent(), nil, nil)

	assert.Empty(t, msg.Attachments)
	assert.Contains(t, msg.HTMLBody, "Present your ticket code at the venue entrance")
}

func TestComposeRetrievalMessage_TwoTickets(t *testing.T) {
	c := newTestComposer(t, stubRenderer{})
	older := ticket("AMP-1-OLDER", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	newer := ticket("AMP-2-NEWER", time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))

	msg := c.ComposeRetrievalMessage([]domain.Ticket{older, newer}, time.Now())

	assert.Equal(t, "Your Amp Arena Tickets Retrieved", msg.Subject)
	assert.Len(t, attachmentsByExt(msg, ".pdf"), 2)

	invites := attachmentsByExt(msg, ".ics")
	require.Len(t, invites, 1)
	assert.Equal(t, "amp-arena-ticket-AMP-2-NEWER.ics", invites[0].Filename)
	assert.Contains(t, string(invites[0].Content), "AMP-2-NEWER")
}

func TestComposeRetrievalMessage_DegradesOnRenderFailure(t *testing.T) {
	c := newTestComposer(t, stubRenderer{failFor: map[string]bool{"AMP-1-BROKEN": true}})
	broken := ticket("AMP-1-BROKEN", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	fine := ticket("AMP-2-FINE", time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))

	msg := c.ComposeRetrievalMessage([]domain.Ticket{broken, fine}, time.Now())

	pdfs := attachmentsByExt(msg, ".pdf")
	require.Len(t, pdfs, 1)
	assert.Equal(t, "amp-arena-ticket-AMP-2-FINE.pdf", pdfs[0].Filename)
	assert.Len(t, attachmentsByExt(msg, ".ics"), 1)
	assert.Contains(t, msg.HTMLBody, "AMP-1-BROKEN")
	assert.Contains(t, msg.HTMLBody, "Printable ticket unavailable")
}

func TestComposeRetrievalMessage_RendererPanics(t *testing.T) {
	c := newTestComposer(t, panicRenderer{})

	msg := c.ComposeRetrievalMessage([]domain.Ticket{ticket("AMP-1-X", time.Now())}, time.Now())

	assert.Empty(t, attachmentsByExt(msg, ".pdf"))
	assert.Contains(t, msg.HTMLBody, "AMP-1-X")
}

func TestComposeSignupMessage(t *testing.T) {
	c := newTestComposer(t, stubRenderer{})

	msg, err := c.ComposeSignupMessage(TemplateWelcome, "s@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Amp Arena!", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "View Landing Page")

	msg, err = c.ComposeSignupMessage(TemplateReminder, "s@example.com")
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "Tomorrow")

	_, err = c.ComposeSignupMessage("farewell", "s@example.com")
	assert.Error(t, err)
}

func TestDispatcher_Send(t *testing.T) {
	msg := mail.Message{To: []string{"a@example.com"}, Subject: "hi", Tag: TagTicket}

	t.Run("delivered", func(t *testing.T) {
		s := new(MockSender)
		s.On("Deliver", mock.Anything, msg).Return("<id@x>", nil).Once()

		res := NewDispatcher(s, time.Second, nil).Send(context.Background(), msg)

		assert.True(t, res.Delivered)
		assert.Equal(t, "<id@x>", res.MessageID)
		assert.NoError(t, res.Err)
		s.AssertExpectations(t)
	})

	t.Run("sender error", func(t *testing.T) {
		s := new(MockSender)
		s.On("Deliver", mock.Anything, msg).Return("", errors.New("smtp down")).Once()

		res := NewDispatcher(s, time.Second, nil).Send(context.Background(), msg)

		assert.False(t, res.Delivered)
		assert.ErrorContains(t, res.Err, "smtp down")
	})

	t.Run("sender panics", func(t *testing.T) {
		s := new(MockSender)
		s.On("Deliver", mock.Anything, msg).Panic("nil transport").Once()

		var res Result
		assert.NotPanics(t, func() {
			res = NewDispatcher(s, time.Second, nil).Send(context.Background(), msg)
		})
		assert.False(t, res.Delivered)
		assert.ErrorContains(t, res.Err, "nil transport")
	})

	t.Run("no sender", func(t *testing.T) {
		res := NewDispatcher(nil, time.Second, nil).Send(context.Background(), msg)
		assert.False(t, res.Delivered)
		assert.Error(t, res.Err)
	})

	t.Run("deadline applied", func(t *testing.T) {
		s := new(MockSender)
		s.On("Deliver", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), msg).Return("<id@x>", nil).Once()

		res := NewDispatcher(s, time.Second, nil).Send(context.Background(), msg)
		assert.True(t, res.Delivered)
		s.AssertExpectations(t)
	})
}

func TestComposeSignupAlert(t *testing.T) {
	c := newTestComposer(t, stubRenderer{})

	msg := c.ComposeSignupAlert("ops@amparena.com", domain.Signup{
		ID:        12,
		Email:     "new<fan>@example.com",
		CreatedAt: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, []string{"ops@amparena.com"}, msg.To)
	assert.Equal(t, "New Amp Arena Signup", msg.Subject)
	assert.Equal(t, TagSignupAlert, msg.Tag)
	assert.Contains(t, msg.HTMLBody, "new&lt;fan&gt;@example.com")
	assert.Contains(t, msg.HTMLBody, "September 1, 2025")
}

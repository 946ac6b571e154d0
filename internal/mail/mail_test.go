package mail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxSender_Deliver(t *testing.T) {
	dir := t.TempDir()

	s, err := NewOutboxSender(dir, From{Address: "tickets@amparena.com", Name: "Amp Arena"}, nil)
	require.NoError(t, err)

	id, err := s.Deliver(context.Background(), Message{
		To:       []string{"a@example.com"},
		Subject:  "Your Amp Arena Ticket",
		HTMLBody: "<p>hello</p>",
		Attachments: []Attachment{
			{Filename: "amp-arena-ticket-X.pdf", Content: []byte("%PDF-1.3"), MimeType: "application/pdf"},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@amparena.com>"))

	files, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Your Amp Arena Ticket")
	assert.Contains(t, string(raw), "amp-arena-ticket-X.pdf")
	assert.Contains(t, string(raw), id)
}

func TestOutboxSender_NoRecipients(t *testing.T) {
	s, err := NewOutboxSender(t.TempDir(), From{}, nil)
	require.NoError(t, err)

	_, err = s.Deliver(context.Background(), Message{Subject: "x"})
	assert.Error(t, err)
}

func TestOutboxSender_CancelledContext(t *testing.T) {
	s, err := NewOutboxSender(t.TempDir(), From{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Deliver(ctx, Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "amparena.com", domainOf("tickets@amparena.com"))
	assert.Equal(t, "localhost", domainOf("nobody"))
	assert.Equal(t, "localhost", domainOf("trailing@"))
}

// Package mail holds outbound message types and the transports that deliver
// them. Senders return an error on failure; callers that must never fail
// wrap them in notify.Dispatcher.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/domodwyer/mailyak/v3"
	"github.com/google/uuid"
)

type Attachment struct {
	Filename string
	Content  []byte
	MimeType string
}

type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
	// Tag is a free-form label for logs and metrics, e.g. "ticket".
	Tag string
}

type Sender interface {
	Deliver(ctx context.Context, msg Message) (id string, err error)
}

type From struct {
	Address string
	Name    string
}

// build fills a mailyak envelope and returns the generated Message-ID.
func build(m *mailyak.MailYak, from From, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("no recipients")
	}

	if from.Address == "" {
		return "", fmt.Errorf("no sender address")
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from.Address))

	m.To(msg.To...)
	m.From(from.Address)
	if from.Name != "" {
		m.FromName(from.Name)
	}
	m.Subject(msg.Subject)
	m.AddHeader("Message-ID", id)
	m.HTML().Set(msg.HTMLBody)

	for _, a := range msg.Attachments {
		m.AttachWithMimeType(a.Filename, bytes.NewReader(a.Content), a.MimeType)
	}

	return id, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

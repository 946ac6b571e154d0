package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/domodwyer/mailyak/v3"
)

// OutboxSender writes each message as an .eml file instead of sending it.
// Used in development and by tests that want to inspect raw MIME output.
type OutboxSender struct {
	dir    string
	from   From
	logger *slog.Logger
}

func NewOutboxSender(dir string, from From, logger *slog.Logger) (*OutboxSender, error) {
	const op = "mail.NewOutboxSender"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if from.Address == "" {
		from.Address = "no-reply@localhost"
	}

	return &OutboxSender{dir: dir, from: from, logger: logger}, nil
}

func (s *OutboxSender) Deliver(ctx context.Context, msg Message) (string, error) {
	const op = "mail.OutboxSender.Deliver"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	m := mailyak.New("localhost:25", nil)

	id, err := build(m, s.from, msg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	buf, err := m.MimeBuf()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	name := fmt.Sprintf("%s-%s.eml", time.Now().UTC().Format("20060102T150405.000"), strings.Trim(id, "<>"))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.logger != nil {
		s.logger.Info("mail written to outbox",
			slog.String("path", path),
			slog.String("subject", msg.Subject),
			slog.Any("to", msg.To),
			slog.Int("attachments", len(msg.Attachments)),
		)
	}

	return id, nil
}

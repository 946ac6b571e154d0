// Package notify turns tickets and signups into outbound mail messages and
// dispatches them without ever failing the caller.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirinyoku/amparena/internal/calendar"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/money"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	MimePDF = "application/pdf"
	MimeICS = "text/calendar; charset=utf-8; method=PUBLISH"

	TagTicket      = "ticket"
	TagRetrieval   = "retrieval"
	TagSignupAlert = "signup_alert"
)

// Signup campaign templates.
const (
	TemplateWelcome  = "welcome"
	TemplateReminder = "reminder"
)

type DocumentRenderer interface {
	RenderTicketDocument(t domain.Ticket, ev domain.Event) ([]byte, error)
}

type InviteBuilder interface {
	BuildInviteFile(t domain.Ticket, ev domain.Event) ([]byte, error)
	BuildProviderLinks(t domain.Ticket, ev domain.Event) map[string]string
}

type Config struct {
	Event      domain.Event
	FilePrefix string
}

type Composer struct {
	cfg       Config
	documents DocumentRenderer
	invites   InviteBuilder
	logger    *slog.Logger
	pages     map[string]*template.Template
}

func NewComposer(cfg Config, documents DocumentRenderer, invites InviteBuilder, logger *slog.Logger) (*Composer, error) {
	const op = "notify.NewComposer"

	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "amp-arena"
	}

	if logger == nil {
		logger = slog.Default()
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"ticket", "retrieval", "signup_alert", TemplateWelcome, TemplateReminder} {
		tpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("%s: parse %s: %w", op, name, err)
		}
		pages[name] = tpl
	}

	return &Composer{
		cfg:       cfg,
		documents: documents,
		invites:   invites,
		logger:    logger,
		pages:     pages,
	}, nil
}

func (c *Composer) DocumentName(code string) string {
	return fmt.Sprintf("%s-ticket-%s.pdf", c.cfg.FilePrefix, code)
}

func (c *Composer) InviteName(code string) string {
	return fmt.Sprintf("%s-ticket-%s.ics", c.cfg.FilePrefix, code)
}

type link struct {
	Name string
	URL  string
}

type ticketView struct {
	Code     string
	Kind     string
	Price    string
	Status   domain.TicketStatus
	Attached bool
}

type alertView struct {
	ID    int64
	Email string
	At    string
}

type pageData struct {
	Title          string
	Headline       string
	EventName      string
	EventNameUpper string
	DateLabel      string
	Venue          string
	Tagline        string
	SupportEmail   string
	SiteURL        string

	Ticket      ticketView
	Tickets     []ticketView
	RequestedAt string
	Alert       alertView
	Links       []link
	HasDocument bool
	HasInvite   bool
}

func (c *Composer) basePage(ev domain.Event, title, headline string) pageData {
	return pageData{
		Title:          title,
		Headline:       headline,
		EventName:      ev.Name,
		EventNameUpper: strings.ToUpper(ev.Name),
		DateLabel:      ev.DateLabel,
		Venue:          ev.Location(),
		Tagline:        ev.Tagline,
		SupportEmail:   ev.SupportEmail,
		SiteURL:        ev.SiteURL,
	}
}

func (c *Composer) view(t domain.Ticket, ev domain.Event) ticketView {
	return ticketView{
		Code:   t.Code,
		Kind:   t.Kind.Label(),
		Price:  money.Format(t.PriceMinorUnits, ev.CurrencySymbol),
		Status: t.Status,
	}
}

func (c *Composer) links(t domain.Ticket, ev domain.Event) []link {
	if c.invites == nil {
		return nil
	}

	names := map[string]string{
		calendar.ProviderGoogle:  "Google Calendar",
		calendar.ProviderOutlook: "Outlook",
		calendar.ProviderYahoo:   "Yahoo Calendar",
	}

	raw := c.invites.BuildProviderLinks(t, ev)
	out := make([]link, 0, len(raw))
	for provider, u := range raw {
		name, ok := names[provider]
		if !ok {
			name = provider
		}
		out = append(out, link{Name: name, URL: u})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// ComposeTicketMessage builds the purchase confirmation. A nil document or
// invite is simply not attached.
func (c *Composer) ComposeTicketMessage(t domain.Ticket, ev domain.Event, document, invite []byte) mail.Message {
	data := c.basePage(ev, "Your "+ev.Name+" Ticket", "Your ticket is ready!")
	data.Ticket = c.view(t, ev)
	data.Links = c.links(t, ev)
	data.HasDocument = len(document) > 0
	data.HasInvite = len(invite) > 0

	msg := mail.Message{
		To:       []string{t.Email},
		Subject:  fmt.Sprintf("Your %s Ticket - Ready for %s!", ev.Name, ev.DateLabel),
		HTMLBody: c.execute("ticket", data),
		Tag:      TagTicket,
	}

	if data.HasDocument {
		msg.Attachments = append(msg.Attachments, mail.Attachment{
			Filename: c.DocumentName(t.Code),
			Content:  document,
			MimeType: MimePDF,
		})
	}

	if data.HasInvite {
		msg.Attachments = append(msg.Attachments, mail.Attachment{
			Filename: c.InviteName(t.Code),
			Content:  invite,
			MimeType: MimeICS,
		})
	}

	return msg
}

// ComposeRetrievalMessage re-renders every ticket for one purchaser. A ticket
// whose document fails to render stays listed in the body without an
// attachment. Only the most recent ticket gets a calendar invite.
func (c *Composer) ComposeRetrievalMessage(tickets []domain.Ticket, requestedAt time.Time) mail.Message {
	ev := c.cfg.Event
	data := c.basePage(ev, "Your "+ev.Name+" Tickets", "Your tickets retrieved")
	data.RequestedAt = requestedAt.UTC().Format("January 2, 2006 15:04 MST")

	msg := mail.Message{
		Subject: fmt.Sprintf("Your %s Tickets Retrieved", ev.Name),
		Tag:     TagRetrieval,
	}

	if len(tickets) == 0 {
		msg.HTMLBody = c.execute("retrieval", data)
		return msg
	}

	msg.To = []string{tickets[0].Email}

	for _, t := range tickets {
		v := c.view(t, ev)

		doc, err := c.renderDocument(t, ev)
		if err != nil {
			c.logger.Warn("ticket document render failed",
				slog.String("op", "notify.Composer.ComposeRetrievalMessage"),
				slog.String("ticket_code", t.Code),
				slog.Any("error", err),
			)
		} else {
			v.Attached = true
			msg.Attachments = append(msg.Attachments, mail.Attachment{
				Filename: c.DocumentName(t.Code),
				Content:  doc,
				MimeType: MimePDF,
			})
		}

		data.Tickets = append(data.Tickets, v)
	}

	latest := mostRecent(tickets)
	data.Links = c.links(latest, ev)

	if c.invites != nil {
		invite, err := c.invites.BuildInviteFile(latest, ev)
		if err != nil {
			c.logger.Warn("calendar invite build failed",
				slog.String("op", "notify.Composer.ComposeRetrievalMessage"),
				slog.String("ticket_code", latest.Code),
				slog.Any("error", err),
			)
		} else {
			msg.Attachments = append(msg.Attachments, mail.Attachment{
				Filename: c.InviteName(latest.Code),
				Content:  invite,
				MimeType: MimeICS,
			})
		}
	}

	msg.HTMLBody = c.execute("retrieval", data)

	return msg
}

// ComposeSignupMessage renders one of the signup campaign templates.
func (c *Composer) ComposeSignupMessage(name, email string) (mail.Message, error) {
	const op = "notify.Composer.ComposeSignupMessage"

	ev := c.cfg.Event

	var subject string
	switch name {
	case TemplateWelcome:
		subject = fmt.Sprintf("Welcome to %s!", ev.Name)
	case TemplateReminder:
		subject = fmt.Sprintf("%s Qualifying Starts Tomorrow!", ev.Name)
	default:
		return mail.Message{}, fmt.Errorf("%s: unknown template %q", op, name)
	}

	data := c.basePage(ev, subject, "The ultimate developer competition")

	return mail.Message{
		To:       []string{email},
		Subject:  subject,
		HTMLBody: c.execute(name, data),
		Tag:      name,
	}, nil
}

// ComposeSignupAlert tells the organizers about a new signup.
func (c *Composer) ComposeSignupAlert(to string, s domain.Signup) mail.Message {
	ev := c.cfg.Event
	subject := fmt.Sprintf("New %s Signup", ev.Name)

	data := c.basePage(ev, subject, "New signup")
	data.Alert = alertView{
		ID:    s.ID,
		Email: s.Email,
		At:    s.CreatedAt.UTC().Format("January 2, 2006 15:04 MST"),
	}

	return mail.Message{
		To:       []string{to},
		Subject:  subject,
		HTMLBody: c.execute("signup_alert", data),
		Tag:      TagSignupAlert,
	}
}

func (c *Composer) renderDocument(t domain.Ticket, ev domain.Event) (doc []byte, err error) {
	if c.documents == nil {
		return nil, fmt.Errorf("no document renderer")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	return c.documents.RenderTicketDocument(t, ev)
}

// execute falls back to a plain body if a template fails at runtime so a
// message is always produced.
func (c *Composer) execute(name string, data pageData) string {
	var buf bytes.Buffer
	if err := c.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		c.logger.Error("email template failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return "<p>" + template.HTMLEscapeString(data.Title) + "</p>"
	}
	return buf.String()
}

func mostRecent(tickets []domain.Ticket) domain.Ticket {
	latest := tickets[0]
	for _, t := range tickets[1:] {
		if t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	return latest
}

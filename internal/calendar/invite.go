// Package calendar builds .ics invites and "add to calendar" links for a
// ticket. Everything here is pure: the only clock is the injected one.
package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/kirinyoku/amparena/internal/domain"
)

const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
	ProviderYahoo   = "yahoo"

	basicUTC = "20060102T150405Z"
)

type Config struct {
	ProductID string
	UIDPrefix string
	UIDDomain string
	Organizer string
}

type Builder struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Builder {
	if cfg.ProductID == "" {
		cfg.ProductID = "-//Amp Arena//Event Calendar//EN"
	}

	if cfg.UIDPrefix == "" {
		cfg.UIDPrefix = "amp-arena"
	}

	if cfg.UIDDomain == "" {
		cfg.UIDDomain = "build-olympics.com"
	}

	return &Builder{cfg: cfg, now: time.Now}
}

// UID is stable per ticket code so re-sent invites update the same entry.
func (b *Builder) UID(code string) string {
	return fmt.Sprintf("%s-%s@%s", b.cfg.UIDPrefix, code, b.cfg.UIDDomain)
}

func (b *Builder) BuildInviteFile(t domain.Ticket, ev domain.Event) ([]byte, error) {
	const op = "calendar.Builder.BuildInviteFile"

	if t.Code == "" {
		return nil, fmt.Errorf("%s: ticket code is required", op)
	}

	if ev.Starts.IsZero() || !ev.Ends.After(ev.Starts) {
		return nil, fmt.Errorf("%s: invalid event window", op)
	}

	stamp := b.now().UTC()

	cal := ics.NewCalendar()
	cal.SetProductId(b.cfg.ProductID)
	cal.SetMethod(ics.MethodPublish)

	event := cal.AddEvent(b.UID(t.Code))
	event.SetDtStampTime(stamp)
	event.SetCreatedTime(stamp)
	event.SetStartAt(ev.Starts.UTC())
	event.SetEndAt(ev.Ends.UTC())
	event.SetSummary(summary(ev))
	event.SetDescription(description(t, ev))
	event.SetLocation(ev.Location())
	event.SetStatus(ics.ObjectStatusConfirmed)
	if ev.SiteURL != "" {
		event.SetURL(ev.SiteURL)
	}
	if b.cfg.Organizer != "" {
		event.SetOrganizer("mailto:"+b.cfg.Organizer, ics.WithCN(ev.Name))
	}
	event.AddAttendee("mailto:"+t.Email, ics.CalendarUserTypeIndividual, ics.ParticipationStatusAccepted)

	addAlarm(event, "-PT24H", fmt.Sprintf("Reminder: %s tomorrow!", ev.Name))
	addAlarm(event, "-PT2H", fmt.Sprintf("%s starts in 2 hours!", ev.Name))

	return []byte(cal.Serialize()), nil
}

func addAlarm(event *ics.VEvent, trigger, text string) {
	alarm := event.AddAlarm()
	alarm.SetAction(ics.ActionDisplay)
	alarm.SetTrigger(trigger)
	alarm.SetProperty(ics.ComponentPropertyDescription, text)
}

// BuildProviderLinks returns deep links for Google, Outlook and Yahoo.
func (b *Builder) BuildProviderLinks(t domain.Ticket, ev domain.Event) map[string]string {
	title := summary(ev)
	details := description(t, ev)
	location := ev.Location()
	start := ev.Starts.UTC()
	end := ev.Ends.UTC()

	google := url.Values{}
	google.Set("action", "TEMPLATE")
	google.Set("text", title)
	google.Set("dates", start.Format(basicUTC)+"/"+end.Format(basicUTC))
	google.Set("details", details)
	google.Set("location", location)

	outlook := url.Values{}
	outlook.Set("path", "/calendar/action/compose")
	outlook.Set("rru", "addevent")
	outlook.Set("subject", title)
	outlook.Set("startdt", start.Format(time.RFC3339))
	outlook.Set("enddt", end.Format(time.RFC3339))
	outlook.Set("body", details)
	outlook.Set("location", location)

	yahoo := url.Values{}
	yahoo.Set("v", "60")
	yahoo.Set("title", title)
	yahoo.Set("st", start.Format(basicUTC))
	yahoo.Set("et", end.Format(basicUTC))
	yahoo.Set("desc", details)
	yahoo.Set("in_loc", location)

	return map[string]string{
		ProviderGoogle:  "https://calendar.google.com/calendar/render?" + google.Encode(),
		ProviderOutlook: "https://outlook.live.com/calendar/0/deeplink/compose?" + outlook.Encode(),
		ProviderYahoo:   "https://calendar.yahoo.com/?" + yahoo.Encode(),
	}
}

func summary(ev domain.Event) string {
	return ev.Name + " - Final Battle"
}

func description(t domain.Ticket, ev domain.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your ticket code: %s\n", t.Code)
	fmt.Fprintf(&b, "Ticket type: %s\n", t.Kind.Label())
	fmt.Fprintf(&b, "Venue: %s\n", ev.Location())
	b.WriteString("Present your ticket QR code at the entrance.")
	if ev.SupportEmail != "" {
		fmt.Fprintf(&b, "\nQuestions? %s", ev.SupportEmail)
	}
	return b.String()
}

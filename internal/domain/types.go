package domain

import (
	"time"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketConfirmed TicketStatus = "confirmed"
	TicketCancelled TicketStatus = "cancelled"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketConfirmed, TicketCancelled:
		return true
	}
	return false
}

type TicketKind string

const (
	KindGeneralAdmission TicketKind = "general_admission"
)

// Label is the human readable name printed on documents and emails.
func (k TicketKind) Label() string {
	switch k {
	case KindGeneralAdmission:
		return "General Admission"
	}
	return string(k)
}

func (k TicketKind) Valid() bool {
	return k == KindGeneralAdmission
}

type Ticket struct {
	Code             string       `json:"code"`
	Email            string       `json:"email"`
	Kind             TicketKind   `json:"kind"`
	PriceMinorUnits  int64        `json:"price_minor_units"`
	PaymentReference string       `json:"payment_reference,omitempty"`
	Status           TicketStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Event describes the single event tickets are issued for.
type Event struct {
	Name           string
	DateLabel      string
	Venue          string
	Address        string
	Starts         time.Time
	Ends           time.Time
	CurrencySymbol string
	SupportEmail   string
	SiteURL        string
	Tagline        string
}

// Location is the venue and street address joined for calendar fields.
func (e Event) Location() string {
	if e.Address == "" {
		return e.Venue
	}
	return e.Venue + ", " + e.Address
}

type Signup struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Notified  bool      `json:"notified"`
}

type CompetitorStatus string

const (
	CompetitorPending    CompetitorStatus = "pending"
	CompetitorQualified  CompetitorStatus = "qualified"
	CompetitorFinalist   CompetitorStatus = "finalist"
	CompetitorEliminated CompetitorStatus = "eliminated"
)

func (s CompetitorStatus) Valid() bool {
	switch s {
	case CompetitorPending, CompetitorQualified, CompetitorFinalist, CompetitorEliminated:
		return true
	}
	return false
}

type Competitor struct {
	ID              int64            `json:"id"`
	Email           string           `json:"email"`
	FullName        string           `json:"full_name"`
	GithubUsername  string           `json:"github_username,omitempty"`
	TwitterUsername string           `json:"twitter_username,omitempty"`
	ProfilePhotoURL string           `json:"profile_photo_url,omitempty"`
	Bio             string           `json:"bio,omitempty"`
	Status          CompetitorStatus `json:"status"`
	Files           []SubmissionFile `json:"submission_files"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type SubmissionFile struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type TicketFilter struct {
	Status TicketStatus
	Email  string
	Limit  int
	Offset int
}

type CompetitorFilter struct {
	Status CompetitorStatus
	Limit  int
	Offset int
}

// CompetitorPatch carries a partial competitor update; nil fields are kept.
type CompetitorPatch struct {
	Email           *string
	FullName        *string
	GithubUsername  *string
	TwitterUsername *string
	ProfilePhotoURL *string
	Bio             *string
	Status          *CompetitorStatus
}

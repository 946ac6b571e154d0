package purchase

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kirinyoku/amparena/internal/domain"
)

// State is the furthest step a confirmation reached.
type State string

const (
	StateAwaitingPayment   State = "awaiting_payment"
	StatePaymentConfirmed  State = "payment_confirmed"
	StateCodeAssigned      State = "code_assigned"
	StatePersisted         State = "persisted"
	StateDocumentsRendered State = "documents_rendered"
	StateNotified          State = "notified"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

// Failure reasons reported with StateFailed.
const (
	ReasonValidation          = "validation"
	ReasonPaymentNotConfirmed = "payment-not-confirmed"
	ReasonCodeExhaustion      = "code-exhaustion"
	ReasonCancelled           = "cancelled"
	ReasonStorage             = "storage"
)

type ConfirmInput struct {
	Email            string `json:"email"`
	PaymentReference string `json:"paymentReference"`
	// Kind and PriceMinorUnits default to the configured ticket when empty.
	Kind            domain.TicketKind `json:"kind"`
	PriceMinorUnits int64             `json:"priceMinorUnits"`
}

func (in ConfirmInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&in.PaymentReference, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Kind, validation.Required, validation.By(func(v any) error {
			if k, _ := v.(domain.TicketKind); !k.Valid() {
				return validation.NewError("validation_invalid_kind", "unknown ticket kind")
			}
			return nil
		})),
		validation.Field(&in.PriceMinorUnits, validation.Required, validation.Min(int64(1))),
	)
}

func (in ConfirmInput) normalize(cfg Config) ConfirmInput {
	in.Email = NormalizeEmail(in.Email)
	in.PaymentReference = strings.TrimSpace(in.PaymentReference)
	if in.Kind == "" {
		in.Kind = cfg.Kind
	}
	if in.PriceMinorUnits == 0 {
		in.PriceMinorUnits = cfg.PriceMinorUnits
	}
	return in
}

// Fingerprint identifies a confirmation request by its normalized input, so
// retries differing only in case, whitespace or omitted defaults match.
func (s *Service) Fingerprint(in ConfirmInput) string {
	in = in.normalize(s.cfg)

	sum := sha256.Sum256([]byte(strings.Join([]string{
		in.Email,
		in.PaymentReference,
		string(in.Kind),
		strconv.FormatInt(in.PriceMinorUnits, 10),
	}, "\x00")))

	return hex.EncodeToString(sum[:])
}

// NormalizeEmail is the canonical form every email is stored and compared in.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(email string) error {
	return validation.Validate(email, validation.Required, validation.Length(3, 254), is.EmailFormat)
}

type Result struct {
	Success    bool           `json:"success"`
	TicketCode string         `json:"ticketCode,omitempty"`
	EmailSent  bool           `json:"emailSent"`
	Duplicate  bool           `json:"duplicate,omitempty"`
	State      State          `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Ticket     *domain.Ticket `json:"-"`
}

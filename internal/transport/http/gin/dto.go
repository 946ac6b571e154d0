package httpgin

import (
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/service/purchase"
)

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type ConfirmPurchaseRequest struct {
	Email            string `json:"email" binding:"required"`
	PaymentReference string `json:"paymentReference"`
	// StripePaymentIntentID is accepted as an alias of PaymentReference.
	StripePaymentIntentID string            `json:"stripe_payment_intent_id"`
	Kind                  domain.TicketKind `json:"kind"`
	PriceMinorUnits       int64             `json:"priceMinorUnits"`
}

func (r ConfirmPurchaseRequest) input() purchase.ConfirmInput {
	ref := r.PaymentReference
	if ref == "" {
		ref = r.StripePaymentIntentID
	}
	return purchase.ConfirmInput{
		Email:            r.Email,
		PaymentReference: ref,
		Kind:             r.Kind,
		PriceMinorUnits:  r.PriceMinorUnits,
	}
}

type PasscodeRequest struct {
	Passcode string `json:"passcode" binding:"required"`
}

type NotifyRequest struct {
	Template string `json:"template" binding:"required"`
	All      bool   `json:"all"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateIntentResponse struct {
	Success         bool   `json:"success"`
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type StripeConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

// ConfirmPurchaseResponse is the orchestrator result as seen by clients.
type ConfirmPurchaseResponse struct {
	Success    bool           `json:"success"`
	TicketCode string         `json:"ticketCode,omitempty"`
	EmailSent  bool           `json:"emailSent"`
	Duplicate  bool           `json:"duplicate,omitempty"`
	State      purchase.State `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func confirmResponse(res purchase.Result, err error) ConfirmPurchaseResponse {
	out := ConfirmPurchaseResponse{
		Success:    res.Success,
		TicketCode: res.TicketCode,
		EmailSent:  res.EmailSent,
		Duplicate:  res.Duplicate,
		State:      res.State,
		Reason:     res.Reason,
	}
	if err != nil {
		out.Error = publicMessage(err)
	}
	return out
}

type RetrieveResponse struct {
	Success     bool   `json:"success"`
	TicketCount int    `json:"ticketCount"`
	Message     string `json:"message"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type SignupResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type ResendResponse struct {
	EmailSent bool `json:"emailSent"`
}

type UploadResponse struct {
	Message string                  `json:"message"`
	Files   []domain.SubmissionFile `json:"files"`
}

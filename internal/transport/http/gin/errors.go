package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/amparena/internal/auth"
	"github.com/kirinyoku/amparena/internal/service/competitors"
	"github.com/kirinyoku/amparena/internal/service/purchase"
	"github.com/kirinyoku/amparena/internal/service/signups"
	"github.com/kirinyoku/amparena/internal/service/tickets"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, purchase.ErrValidation),
		errors.Is(err, purchase.ErrInvalidWebhook),
		errors.Is(err, tickets.ErrInvalidEmail),
		errors.Is(err, signups.ErrInvalidEmail),
		errors.Is(err, signups.ErrUnknownTemplate),
		errors.Is(err, competitors.ErrValidation),
		errors.Is(err, competitors.ErrNoFiles),
		errors.Is(err, competitors.ErrTooManyFiles),
		errors.Is(err, competitors.ErrUnsupportedFileType):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidPasscode),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, purchase.ErrPaymentNotConfirmed):
		return http.StatusPaymentRequired
	case errors.Is(err, tickets.ErrNoTickets),
		errors.Is(err, tickets.ErrTicketNotFound),
		errors.Is(err, competitors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, purchase.ErrTicketCancelled),
		errors.Is(err, tickets.ErrAlreadyCanceled),
		errors.Is(err, tickets.ErrNotConfirmed),
		errors.Is(err, signups.ErrAlreadySignedUp),
		errors.Is(err, competitors.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, competitors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, tickets.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, purchase.ErrCodeExhaustion):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage is the client-facing text for err. Unknown errors are not
// echoed back.
func publicMessage(err error) string {
	var (
		pve *purchase.ValidationError
		cve *competitors.ValidationError
		fe  *competitors.FileError
	)

	switch {
	case errors.As(err, &pve):
		return pve.Error()
	case errors.As(err, &cve):
		return cve.Error()
	case errors.As(err, &fe):
		return fe.Error()
	}

	for _, known := range []error{
		purchase.ErrPaymentNotConfirmed, purchase.ErrCodeExhaustion, purchase.ErrTicketCancelled,
		purchase.ErrInvalidWebhook,
		tickets.ErrInvalidEmail, tickets.ErrNoTickets, tickets.ErrTicketNotFound,
		tickets.ErrAlreadyCanceled, tickets.ErrNotConfirmed, tickets.ErrDeliveryFailed, tickets.ErrRateLimited,
		signups.ErrInvalidEmail, signups.ErrAlreadySignedUp, signups.ErrUnknownTemplate,
		competitors.ErrAlreadyRegistered, competitors.ErrNotFound, competitors.ErrNoFiles,
		competitors.ErrTooManyFiles,
		auth.ErrInvalidPasscode, auth.ErrInvalidToken, auth.ErrForbidden,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return "internal server error"
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var rl *tickets.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}

	c.JSON(status, ErrorResponse{Error: publicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

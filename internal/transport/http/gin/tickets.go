package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	"github.com/kirinyoku/amparena/internal/service"
	"github.com/kirinyoku/amparena/internal/service/purchase"
)

const maxWebhookBody = 1 << 16

// @Summary  Publishable payment key
// @Success  200 {object} StripeConfigResponse
// @Router   /api/stripe/config [get]
func handleStripeConfig(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StripeConfigResponse{PublishableKey: key})
	}
}

// @Summary  Start a ticket purchase
// @Param    req body  EmailRequest true "payload"
// @Success  200 {object} CreateIntentResponse
// @Failure  400 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /api/tickets/purchase [post]
func handleCreateIntent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "valid email address required")
			return
		}

		intent, err := svcs.Purchase.CreateIntent(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, purchase.ErrValidation) {
				respondErr(c, err)
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to create payment intent"})
			return
		}

		c.JSON(http.StatusOK, CreateIntentResponse{
			Success:         true,
			ClientSecret:    intent.ClientSecret,
			PaymentIntentID: intent.ID,
		})
	}
}

// @Summary  Confirm a purchase and issue the ticket (idempotent)
// @Param    req body  ConfirmPurchaseRequest true "payload"
// @Param    Idempotency-Key header string false "client retry key"
// @Success  200 {object} ConfirmPurchaseResponse
// @Failure  400 {object} ConfirmPurchaseResponse
// @Failure  402 {object} ConfirmPurchaseResponse "payment not confirmed"
// @Failure  409 {object} ErrorResponse "cancelled / idempotency key in progress"
// @Failure  422 {object} ErrorResponse "idempotency key reused with a different request"
// @Router   /api/tickets/confirm [post]
func handleConfirmPurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email and payment reference are required")
			return
		}

		ctx := c.Request.Context()
		in := req.input()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey, fingerprint string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemConfirm(idemKey)
			fingerprint = svcs.Purchase.Fingerprint(in)

			if stored, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
				replay(c, idemKey, fingerprint, stored)
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if stored, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
					replay(c, idemKey, fingerprint, stored)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Purchase.Confirm(ctx, in)
		resp := confirmResponse(res, err)

		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			status := statusOf(err)
			if status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			c.JSON(status, resp)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(ctx, idemStorageKey, fingerprint, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// replay answers with a stored result, or 422 when the key was first used
// for a different request.
func replay(c *gin.Context, idemKey, fingerprint string, stored redisrepo.StoredResult) {
	c.Header("Idempotency-Key", idemKey)

	if stored.Fingerprint != fingerprint {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "Idempotency-Key was already used with a different request"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(stored.Payload))
}

// @Summary  Payment processor webhook
// @Param    Stripe-Signature header string true "signature"
// @Success  200 {object} map[string]bool
// @Failure  400 {object} ErrorResponse
// @Router   /api/stripe/webhook [post]
func handleStripeWebhook(svcs *service.Services, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

		payload, err := c.GetRawData()
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}

		res, handled, err := svcs.Purchase.HandleWebhook(
			c.Request.Context(),
			payload,
			c.GetHeader("Stripe-Signature"),
		)
		switch {
		case errors.Is(err, purchase.ErrInvalidWebhook):
			respondErr(c, err)
			return
		case err != nil && statusOf(err) >= http.StatusInternalServerError:
			// let the processor retry
			respondErr(c, err)
			return
		case err != nil:
			logger.Warn("webhook not applied", slog.Any("error", err))
		case handled:
			logger.Info("webhook issued ticket",
				slog.String("code", res.TicketCode),
				slog.Bool("duplicate", res.Duplicate),
			)
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// @Summary  Email all confirmed tickets of an address
// @Param    req body  EmailRequest true "payload"
// @Success  200 {object} RetrieveResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "no confirmed tickets"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /api/tickets/retrieve [post]
func handleRetrieveTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "valid email address required")
			return
		}

		res, err := svcs.Tickets.Retrieve(c.Request.Context(), req.Email, c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, RetrieveResponse{
			Success:     true,
			TicketCount: res.TicketCount,
			Message:     "Tickets sent to your email successfully!",
		})
	}
}

// @Summary  Confirmed ticket count
// @Success  200 {object} CountResponse
// @Router   /api/tickets/count [get]
func handleTicketCount(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Tickets.CountConfirmed(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, CountResponse{Count: n}, "public, max-age=15")
	}
}

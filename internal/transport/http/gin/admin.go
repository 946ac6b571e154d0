package httpgin

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/amparena/internal/auth"
	"github.com/kirinyoku/amparena/internal/domain"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	"github.com/kirinyoku/amparena/internal/service"
)

const streamKeepAlive = 25 * time.Second

// @Summary  Exchange a dashboard passcode for a session token
// @Param    req body  PasscodeRequest true "payload"
// @Success  200 {object} auth.Session
// @Failure  401 {object} ErrorResponse
// @Router   /api/admin/auth [post]
func handleAdminAuth(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PasscodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "passcode required")
			return
		}

		sess, err := m.Login(req.Passcode)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, sess)
	}
}

// @Summary  List tickets
// @Security BearerAuth
// @Param    status query string false "pending|confirmed|cancelled"
// @Param    email  query string false "purchaser email"
// @Param    limit  query int    false "page size"
// @Param    offset query int    false "offset"
// @Success  200 {array}  domain.Ticket
// @Router   /api/admin/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := domain.TicketStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			badRequest(c, "invalid status")
			return
		}

		ts, err := svcs.Tickets.List(c.Request.Context(), domain.TicketFilter{
			Status: status,
			Email:  c.Query("email"),
			Limit:  parseIntDefault(c.Query("limit"), 0),
			Offset: parseIntDefault(c.Query("offset"), 0),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ts)
	}
}

// @Summary  Cancel a ticket
// @Security BearerAuth
// @Param    code path string true "Ticket code"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /api/admin/tickets/{code}/cancel [post]
func handleCancelTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Tickets.Cancel(c.Request.Context(), c.Param("code")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Resend a ticket confirmation
// @Security BearerAuth
// @Param    code path string true "Ticket code"
// @Success  200 {object} ResendResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /api/admin/tickets/{code}/resend [post]
func handleResendTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent, err := svcs.Tickets.Resend(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ResendResponse{EmailSent: sent})
	}
}

// @Summary  Live feed of ticket and signup activity (SSE)
// @Security BearerAuth
// @Produce  text/event-stream
// @Success  200
// @Failure  503 {object} ErrorResponse
// @Router   /api/admin/stream [get]
func handleActivityStream(act *redisrepo.ActivityPubSub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if act == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "live feed unavailable"})
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		events := make(chan redisrepo.Activity, 32)
		go func() {
			defer close(events)
			_ = act.Subscribe(ctx, func(_ context.Context, a redisrepo.Activity) {
				select {
				case events <- a:
				default:
					// slow client, drop
				}
			})
		}()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		c.Stream(func(io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case a, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(a.Type, a)
				return true
			case <-keepAlive.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
	}
}

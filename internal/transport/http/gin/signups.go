package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/amparena/internal/service"
)

// @Summary  Sign up for event updates
// @Param    req body  EmailRequest true "payload"
// @Success  201 {object} SignupResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already registered"
// @Router   /api/signup [post]
func handleSignup(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "valid email address required")
			return
		}

		su, err := svcs.Signups.Create(c.Request.Context(), req.Email)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, SignupResponse{Message: "Successfully signed up!", ID: su.ID})
	}
}

// @Summary  Signup count
// @Success  200 {object} CountResponse
// @Router   /api/count [get]
func handleSignupCount(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Signups.Count(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, CountResponse{Count: n}, "public, max-age=15")
	}
}

// @Summary  List signups
// @Security BearerAuth
// @Param    limit  query int false "page size"
// @Param    offset query int false "offset"
// @Success  200 {array} domain.Signup
// @Router   /api/admin/signups [get]
func handleListSignups(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Signups.List(
			c.Request.Context(),
			parseIntDefault(c.Query("limit"), 0),
			parseIntDefault(c.Query("offset"), 0),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Mail a campaign template to signups
// @Security BearerAuth
// @Param    req body  NotifyRequest true "payload"
// @Success  200 {object} signups.Summary
// @Failure  400 {object} ErrorResponse
// @Router   /api/admin/signups/notify [post]
func handleNotifySignups(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NotifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "template required")
			return
		}

		sum, err := svcs.Signups.NotifyPending(c.Request.Context(), req.Template, req.All)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

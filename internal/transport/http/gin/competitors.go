package httpgin

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/service"
	"github.com/kirinyoku/amparena/internal/service/competitors"
)

// @Summary  Register as a competitor
// @Param    req body  competitors.ProfileInput true "payload"
// @Success  201 {object} domain.Competitor
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already registered"
// @Router   /api/competitors [post]
func handleRegisterCompetitor(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req competitors.ProfileInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}

		comp, err := svcs.Competitors.Register(c.Request.Context(), req)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, comp)
	}
}

// @Summary  Get a competitor profile
// @Param    id path int true "Competitor ID"
// @Success  200 {object} domain.Competitor
// @Failure  404 {object} ErrorResponse
// @Router   /api/competitors/{id} [get]
func handleGetCompetitor(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		comp, err := svcs.Competitors.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, comp)
	}
}

// @Summary  List competitors
// @Security BearerAuth
// @Param    status query string false "pending|qualified|finalist|eliminated"
// @Param    limit  query int    false "page size"
// @Param    offset query int    false "offset"
// @Success  200 {array} domain.Competitor
// @Router   /api/competitors [get]
func handleListCompetitors(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Competitors.List(c.Request.Context(), domain.CompetitorFilter{
			Status: domain.CompetitorStatus(c.Query("status")),
			Limit:  parseIntDefault(c.Query("limit"), 0),
			Offset: parseIntDefault(c.Query("offset"), 0),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Replace a competitor profile
// @Security BearerAuth
// @Param    id  path int true "Competitor ID"
// @Param    req body competitors.UpdateInput true "payload"
// @Success  200 {object} domain.Competitor
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /api/competitors/{id} [put]
func handleUpdateCompetitor(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req competitors.UpdateInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}

		comp, err := svcs.Competitors.Update(c.Request.Context(), id, req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, comp)
	}
}

// @Summary  Remove a competitor and their files
// @Security BearerAuth
// @Param    id path int true "Competitor ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /api/competitors/{id} [delete]
func handleDeleteCompetitor(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		if err := svcs.Competitors.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Upload submission files
// @Accept   multipart/form-data
// @Param    id    path     int  true "Competitor ID"
// @Param    files formData file true "up to 5 files, 10MB each"
// @Success  200 {object} UploadResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  413 {object} ErrorResponse
// @Router   /api/competitors/{id}/upload [post]
func handleUploadFiles(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		maxFiles, maxSize := svcs.Competitors.Limits()
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxFiles)*maxSize+1<<20)

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "upload too large or malformed"})
			return
		}

		headers := form.File["files"]
		if len(headers) > maxFiles {
			respondErr(c, competitors.ErrTooManyFiles)
			return
		}

		uploads := make([]competitors.Upload, 0, len(headers))
		for _, fh := range headers {
			u, err := readUpload(fh, maxSize)
			if err != nil {
				respondErr(c, err)
				return
			}
			uploads = append(uploads, u)
		}

		files, err := svcs.Competitors.AddFiles(c.Request.Context(), id, uploads)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UploadResponse{Message: "Files uploaded successfully", Files: files})
	}
}

func readUpload(fh *multipart.FileHeader, maxSize int64) (competitors.Upload, error) {
	if fh.Size > maxSize {
		return competitors.Upload{}, &competitors.FileError{Name: fh.Filename, Err: competitors.ErrFileTooLarge}
	}

	f, err := fh.Open()
	if err != nil {
		return competitors.Upload{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return competitors.Upload{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}

	return competitors.Upload{Name: fh.Filename, Body: body}, nil
}

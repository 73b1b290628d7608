package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"safewatch-backend/internal/api/middleware"
	"safewatch-backend/internal/services"
	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// multipartOverhead is the allowance for form fields on top of the media limit.
const multipartOverhead = 1 << 20

var errMediaTooLarge = errors.New("media file too large")

type AlertHandler struct {
	alertService   *services.AlertService
	store          media.Store
	maxUploadBytes int64
}

func NewAlertHandler(alertService *services.AlertService, store media.Store, maxUploadBytes int64) *AlertHandler {
	return &AlertHandler{
		alertService:   alertService,
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateAlert handles POST /api/alerts
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	h.limitBody(c)

	var input services.CreateAlertInput
	if err := c.ShouldBind(&input); err != nil {
		h.respondBindError(c, err)
		return
	}

	mediaRef, err := h.saveMedia(c)
	if err != nil {
		h.respondMediaError(c, err)
		return
	}

	alert, err := h.alertService.CreateAlert(c.Request.Context(), middleware.CallerID(c), &input, mediaRef)
	if err != nil {
		h.discardMedia(c, mediaRef)
		respondServiceError(c, err, "Failed to create alert")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert created successfully",
		"alert":   alert,
	})
}

// GetAlerts handles GET /api/alerts
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.alertService.GetAllAlerts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch alerts")
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// GetMyAlerts handles GET /api/alerts/mine
func (h *AlertHandler) GetMyAlerts(c *gin.Context) {
	alerts, err := h.alertService.GetMyAlerts(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch your alerts")
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// GetAlert handles GET /api/alerts/:id
func (h *AlertHandler) GetAlert(c *gin.Context) {
	alert, err := h.alertService.GetAlertByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Error fetching alert details")
		return
	}

	c.JSON(http.StatusOK, alert)
}

// UpdateAlert handles PUT /api/alerts/:id
func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	h.limitBody(c)

	var input services.UpdateAlertInput
	if err := c.ShouldBind(&input); err != nil {
		h.respondBindError(c, err)
		return
	}

	mediaRef, err := h.saveMedia(c)
	if err != nil {
		h.respondMediaError(c, err)
		return
	}

	alert, err := h.alertService.UpdateAlert(c.Request.Context(), middleware.CallerID(c), c.Param("id"), &input, mediaRef)
	if err != nil {
		h.discardMedia(c, mediaRef)
		respondServiceError(c, err, "Failed to update alert")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert updated successfully",
		"alert":   alert,
	})
}

// DeleteAlert handles DELETE /api/alerts/:id
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	if err := h.alertService.DeleteAlert(c.Request.Context(), middleware.CallerID(c), c.Param("id")); err != nil {
		respondServiceError(c, err, "Failed to delete alert")
		return
	}

	utils.MessageResponse(c, http.StatusOK, "Alert deleted successfully")
}

func (h *AlertHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
}

// saveMedia stores the optional "media" file and returns its reference, or
// "" when the request carries no file.
func (h *AlertHandler) saveMedia(c *gin.Context) (string, error) {
	fileHeader, err := c.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return "", errMediaTooLarge
	}

	return h.storeFile(c.Request.Context(), fileHeader)
}

func (h *AlertHandler) storeFile(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	return h.store.Save(ctx, fileHeader.Filename, file)
}

// discardMedia removes a file saved for a request the service rejected.
func (h *AlertHandler) discardMedia(c *gin.Context, ref string) {
	if ref == "" {
		return
	}
	if err := h.store.Delete(context.WithoutCancel(c.Request.Context()), ref); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("media_ref", ref).Msg("failed to discard rejected upload")
	}
}

func (h *AlertHandler) respondBindError(c *gin.Context, err error) {
	if isTooLarge(err) {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}
	utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
}

func (h *AlertHandler) respondMediaError(c *gin.Context, err error) {
	if isTooLarge(err) {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Media file too large", err)
		return
	}
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to store media")
	utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to store media", err)
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.Is(err, errMediaTooLarge) || errors.As(err, &maxBytesErr)
}

// respondServiceError maps the service error taxonomy onto HTTP responses.
// Unexpected failures are logged and answered with fallback only.
func respondServiceError(c *gin.Context, err error, fallback string) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		utils.ValidationErrorResponse(c, validationMessage(validationErr), validationErr.Fields)
	case errors.Is(err, services.ErrAlertNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Alert not found", nil)
	case errors.Is(err, services.ErrNotAlertOwner):
		utils.ErrorResponse(c, http.StatusForbidden, "Not authorized", nil)
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("alert request failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, fallback, err)
	}
}

func validationMessage(err *services.ValidationError) string {
	for _, field := range err.Fields {
		switch field {
		case "title", "description", "location":
			return "All fields are required"
		}
	}
	return "Invalid coordinates"
}

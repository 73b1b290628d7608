package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type MediaHandler struct {
	store media.Store
}

func NewMediaHandler(store media.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// ServeMedia handles GET /uploads/:name
func (h *MediaHandler) ServeMedia(c *gin.Context) {
	name := c.Param("name")

	body, err := h.store.Open(c.Request.Context(), media.Ref(name))
	if err != nil {
		if errors.Is(err, media.ErrNotFound) || errors.Is(err, media.ErrInvalidRef) {
			utils.ErrorResponse(c, http.StatusNotFound, "Media not found", nil)
			return
		}
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("name", name).Msg("failed to open media")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load media", err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

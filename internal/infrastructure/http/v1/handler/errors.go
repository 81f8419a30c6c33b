package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
)

var (
	ErrFailedToDecodeRequestBody = errors.New("failed to decode request body")
	ErrInvalidCoordinates        = errors.New("invalid lat/lon parameters")
)

// StatusFor maps a domain error onto its HTTP status.
func StatusFor(err error) int {
	var (
		validation *entity.ValidationError
		forbidden  *entity.ForbiddenError
		notFound   *entity.NotFoundError
		tooLarge   *entity.TooLargeError
		upstream   *entity.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &upstream):
		if upstream.StatusCode >= 400 && upstream.StatusCode <= 599 {
			return upstream.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	l := h.log(c)

	if status >= http.StatusInternalServerError {
		l.Error("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		l.Warn("request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", entity.NewValidationError("missing id"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("ctx: %w", entity.NewValidationError("x")), http.StatusBadRequest},
		{"forbidden", &entity.ForbiddenError{Host: "evil.example.com"}, http.StatusForbidden},
		{"not found", &entity.NotFoundError{Message: "no box"}, http.StatusNotFound},
		{"too large", &entity.TooLargeError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"upstream status", &entity.UpstreamError{Provider: "elevation", StatusCode: 429}, http.StatusTooManyRequests},
		{"circuit open", &entity.UpstreamError{Provider: "airports", StatusCode: 503}, http.StatusServiceUnavailable},
		{"upstream without status", &entity.UpstreamError{Provider: "proxy"}, http.StatusBadGateway},
		{"storage", errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

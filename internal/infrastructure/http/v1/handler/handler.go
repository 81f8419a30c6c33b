package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/usecase"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	validate           *validator.Validate
	tileUseCase        *usecase.TileUseCase
	mapUseCase         *usecase.MapUseCase
	aggregationUseCase *usecase.AggregationUseCase
	db                 HealthChecker
	logger             logger.Logger
	startedAt          time.Time
}

func NewHandler(
	v *validator.Validate,
	tiles *usecase.TileUseCase,
	maps *usecase.MapUseCase,
	aggregation *usecase.AggregationUseCase,
	db HealthChecker,
	l logger.Logger,
) *Handler {
	return &Handler{
		validate:           v,
		tileUseCase:        tiles,
		mapUseCase:         maps,
		aggregationUseCase: aggregation,
		db:                 db,
		logger:             l,
		startedAt:          time.Now(),
	}
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// log returns the request scoped logger set by the router.
func (h *Handler) log(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return h.logger
}

// bind decodes the JSON body into the struct dst and validates it.
func (h *Handler) bind(c *gin.Context, dst any) error {
	if err := h.decode(c, dst); err != nil {
		return err
	}

	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *Handler) decode(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return entity.NewValidationError("request body is required")
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return &entity.TooLargeError{Limit: maxBytes.Limit}
		}
		return entity.NewValidationError("%s: %v", ErrFailedToDecodeRequestBody, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return entity.NewValidationError("%s: %v", ErrFailedToDecodeRequestBody, err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return entity.NewValidationError("%s", err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return entity.NewValidationError("Missing required fields: %s", strings.Join(fields, ", "))
}

package gateway

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/models"
)

var registerOnce sync.Once

// RegisterValidators adds the "intention" tag to gin's validator. The tag
// accepts strings that are ids in catalog.
func RegisterValidators(catalog *intentions.Catalog) error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("intention", func(fl validator.FieldLevel) bool {
			_, ok := catalog.Lookup(fl.Field().String())
			return ok
		})
	})
	return err
}

// RequestLogger emits one structured line per request
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func (h *Handler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		var unknown []string
		for _, fe := range verrs {
			if fe.Tag() == "intention" {
				unknown = append(unknown, fe.Value().(string))
			}
		}
		if len(unknown) > 0 {
			respondError(c, http.StatusBadRequest, models.ErrCodeUnknownIntention,
				"unknown intention: "+strings.Join(unknown, ", "), nil)
			return
		}
	}
	respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request",
		map[string]string{"error": err.Error()})
}

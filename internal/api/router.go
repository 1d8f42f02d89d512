package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithRateLimit configures a token bucket limiter. A zero rate or burst
// disables limiting.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if rps <= 0 || burst <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucketLimiter(rps, burst)
	}
}

type routerConfig struct {
	enableLogging bool
	rateLimiter   rateLimiter
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter creates a gin engine serving the API with request IDs, rate
// limiting, access logs and panic recovery.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) *gin.Engine {
	cfg := routerConfig{
		enableLogging: true,
		rateLimiter:   newTokenBucketLimiter(10, 20),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := gin.New()
	r.Use(requestIDMiddleware())
	r.Use(rateLimitMiddleware(cfg.rateLimiter))
	if cfg.enableLogging {
		r.Use(loggingMiddleware(logger))
	}
	r.Use(recoveryMiddleware(logger))

	api := r.Group("/api")
	api.GET("/health", handler.handleHealth)
	api.POST("/optimize", handler.handleOptimize)
	api.POST("/optimize/pdf", handler.handleOptimizePDF)
	api.POST("/optimize/png", handler.handleOptimizePNG)
	api.GET("/history", handler.handleHistory)

	return r
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", c.GetString(requestIDKey)),
				)
				abortWithError(c, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

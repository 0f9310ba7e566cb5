// Package httpapi assembles the gin engine that serves the POS API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/invoice"
)

// Dependencies are the use cases and stores the routes are built on.
type Dependencies struct {
	ServiceName string
	Logger      logrus.FieldLogger

	Catalog     *catalog.UseCase
	CartService *cart.Service
	Carts       cart.Store
	Invoices    *invoice.UseCase

	// CartTTL sets the session cookie lifetime.
	CartTTL time.Duration

	// Ping reports storage health for /health. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter builds the engine with tracing, access logging and every route.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(deps.ServiceName))
	r.Use(accessLog(deps.Logger))

	r.GET("/health", health(deps.ServiceName, deps.Ping))

	api := r.Group("/api")
	catalog.NewHandler(deps.Catalog).Register(api)

	session := api.Group("", cart.SessionMiddleware(int(deps.CartTTL.Seconds())))
	cart.NewHandler(deps.CartService, deps.Carts).Register(session)
	invoice.NewHandler(deps.Invoices, deps.Carts).Register(session)

	return r
}

// NewServer wraps handler with the service timeouts.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func health(serviceName string, ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}

func accessLog(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if sessionID := cart.SessionID(c); sessionID != "" {
			entry = entry.WithField("session_id", sessionID)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.WithField("errors", c.Errors.String()).Error("request failed")
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

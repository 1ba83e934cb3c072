package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"usermgmt/internal/auth"
	"usermgmt/internal/handler"
	"usermgmt/internal/metrics"
	"usermgmt/internal/middleware"
	"usermgmt/internal/storage"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
	Health *handler.HealthHandler
}

// formOverheadBytes covers the text fields and multipart framing sent alongside a profile image.
const formOverheadBytes = 64 * 1024

// Options carries the non-handler dependencies of the router.
type Options struct {
	Gate      *auth.Gate
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	UploadDir string

	// MaxImageBytes sizes the request body limit. Zero disables the limit.
	MaxImageBytes int64
	// CORSOrigins defaults to any origin when empty.
	CORSOrigins   []string
}

// Register wires routes and middleware.
func Register(e *echo.Echo, h Handlers, opts Options) {
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(opts.Logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	if opts.MaxImageBytes > 0 {
		e.Use(echomw.BodyLimit(strconv.FormatInt(opts.MaxImageBytes+formOverheadBytes, 10)))
	}

	e.GET("/health", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(opts.Registry)))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.Static(strings.TrimSuffix(storage.URLPrefix, "/"), opts.UploadDir)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require a valid access token)
	authenticate := middleware.Authenticate(opts.Gate)
	api.GET("/auth/me", h.Auth.Me, authenticate)

	users := api.Group("/users", authenticate)
	users.GET("", h.Users.ListUsers, middleware.RequireAdmin())
	users.GET("/:id", h.Users.GetUser)
	users.PUT("/:id", h.Users.UpdateUser)
	users.DELETE("/:id", h.Users.DeleteUser, middleware.RequireAdmin())
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"usermgmt/internal/middleware"
	"usermgmt/internal/model"
	"usermgmt/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   service.AuthService
	maxImageBytes int64
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, maxImageBytes int64, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, maxImageBytes: maxImageBytes, logger: logger}
}

// RegisterResponse is the created user and the outcome of the optional image upload.
type RegisterResponse struct {
	User               *model.User `json:"user"`
	ProfileImageUpload ImageResult `json:"profile_image_upload"`
}

// Register godoc
// @Summary Register a new user
// @Description Accepts JSON, or multipart form data with an optional profile_image (jpg/png, max 2 MiB).
// @Description A failed image upload does not fail the registration; see profile_image_upload.
// @Tags auth
// @Accept json,mpfd
// @Produce json
// @Param request body service.RegisterInput true "Registration data"
// @Param profile_image formData file false "Profile image"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, bindError(err))
	}

	img, err := readImage(c, h.maxImageBytes)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.authService.Register(c.Request().Context(), req, img)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		User:               result.User,
		ProfileImageUpload: imageResult(result.Image),
	})
}

// Login godoc
// @Summary Login user
// @Description JSON body with email_or_phone, or an OAuth2 password form with username.
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} auth.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, bindError(err))
	}

	pair, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RefreshInput true "Refresh token"
// @Success 200 {object} auth.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req service.RefreshInput
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, bindError(err))
	}

	pair, err := h.authService.Refresh(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}

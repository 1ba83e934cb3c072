package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"usermgmt/internal/middleware"
	"usermgmt/internal/model"
	"usermgmt/internal/service"
)

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc           service.UserService
	maxImageBytes int64
	logger        *slog.Logger
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, maxImageBytes int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, maxImageBytes: maxImageBytes, logger: logger}
}

// UpdateResponse is the updated user and the outcome of the optional image replacement.
type UpdateResponse struct {
	User               *model.User `json:"user"`
	ProfileImageUpload ImageResult `json:"profile_image_upload"`
}

// DeleteResponse confirms a deletion and reports the image removal.
type DeleteResponse struct {
	Message             string      `json:"message" example:"user deleted"`
	ProfileImageRemoval ImageResult `json:"profile_image_removal"`
}

// ListUsers godoc
// @Summary List users
// @Description Admin only. search matches name, email, state and city; state and city filter by substring.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" minimum(1) default(1)
// @Param page_size query int false "Page size" minimum(1) maximum(100) default(10)
// @Param search query string false "Search term"
// @Param state query string false "State filter"
// @Param city query string false "City filter"
// @Success 200 {object} service.Page
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	q := service.DefaultListQuery()
	err = echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("page_size", &q.PageSize).
		String("search", &q.Search).
		String("state", &q.State).
		String("city", &q.City).
		BindError()
	if err != nil {
		return respondError(c, h.logger, bindError(err))
	}

	page, err := h.svc.ListUsers(c.Request().Context(), actor, q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetUser godoc
// @Summary Get user by id
// @Description Users may read their own profile; admins may read any.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.svc.GetProfile(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser godoc
// @Summary Update user profile
// @Description Partial update; only supplied fields change. Accepts JSON or multipart form data with an
// @Description optional profile_image. Role and password cannot be changed here.
// @Tags users
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body service.UpdateInput false "Fields to change"
// @Param profile_image formData file false "Replacement profile image"
// @Success 200 {object} UpdateResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	in, err := bindUpdate(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	img, err := readImage(c, h.maxImageBytes)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.svc.UpdateProfile(c.Request().Context(), actor, id, in, img)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, UpdateResponse{
		User:               result.User,
		ProfileImageUpload: imageResult(result.Image),
	})
}

// DeleteUser godoc
// @Summary Delete user
// @Description Admin only. Admins cannot delete themselves. Issued tokens are not revoked.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} DeleteResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.svc.DeleteUser(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{
		Message:             "user deleted",
		ProfileImageRemoval: imageResult(result.Image),
	})
}

// bindUpdate reads a partial update from JSON, or from form fields where blank values count as absent.
func bindUpdate(c echo.Context) (service.UpdateInput, error) {
	var in service.UpdateInput
	if !isForm(c) {
		if err := c.Bind(&in); err != nil {
			return in, bindError(err)
		}
		return in, nil
	}

	params, err := c.FormParams()
	if err != nil {
		return in, bindError(err)
	}
	fields := map[string]**string{
		"name":    &in.Name,
		"email":   &in.Email,
		"phone":   &in.Phone,
		"address": &in.Address,
		"state":   &in.State,
		"city":    &in.City,
		"country": &in.Country,
		"pincode": &in.Pincode,
	}
	for name, dst := range fields {
		if v := params.Get(name); v != "" {
			*dst = &v
		}
	}
	return in, nil
}

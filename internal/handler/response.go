package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/service"
	"usermgmt/internal/storage"
)

const profileImageField = "profile_image"

// ImageResult reports what happened to an uploaded or stored profile image.
type ImageResult struct {
	Status string                   `json:"status" example:"stored"`
	Path   string                   `json:"path,omitempty" example:"/uploads/user_1_avatar.png"`
	Error  *apperrors.ErrorResponse `json:"error,omitempty"`
}

func imageResult(o service.ImageOutcome) ImageResult {
	res := ImageResult{Status: string(o.Status), Path: o.Path}
	if o.Err != nil {
		body := apperrors.MapErrorToHTTP(o.Err).ToErrorResponse()
		res.Error = &body
	}
	return res
}

// respondError converts err into the JSON error body. Internal errors are logged with the request id
// and reported without detail.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

// bindError turns an echo binding failure into a validation error.
func bindError(err error) error {
	var be *echo.BindingError
	if errors.As(err, &be) && be.Field != "" {
		return apperrors.InvalidField(be.Field, "has an invalid value")
	}
	return apperrors.InvalidField("body", "malformed request body")
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.InvalidField("id", "must be a positive integer")
	}
	return uint(id), nil
}

func isForm(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEMultipartForm) || strings.HasPrefix(ct, echo.MIMEApplicationForm)
}

// readImage returns the profile_image file of a multipart request, or nil when none was sent. At most
// maxBytes+1 bytes are read so the store can still reject oversized files.
func readImage(c echo.Context, maxBytes int64) (*storage.Image, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	fh, err := c.FormFile(profileImageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.InvalidField(profileImageField, "could not read upload")
	}
	if fh.Filename == "" && fh.Size == 0 {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Internal("open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, apperrors.Internal("read upload", err)
	}
	return &storage.Image{Filename: fh.Filename, Data: data}, nil
}

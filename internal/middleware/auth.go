package middleware

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"usermgmt/internal/auth"
	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/metrics"
	"usermgmt/internal/model"
)

// UserContextKey is where Authenticate stores the *model.User.
const UserContextKey = "user"

// Authenticate verifies the bearer access token with gate and stores the resolved user in the
// context. Requests without a valid token are rejected with 401.
func Authenticate(gate *auth.Gate) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  UserContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			user, err := gate.Authenticate(c.Request().Context(), token)
			if err != nil {
				return nil, err
			}
			return user, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				// Only the extractor produces errors of its own: no usable Authorization header.
				err = apperrors.ErrMissingToken
			}
			metrics.ObserveAuth("authenticate", err)
			return reject(err)
		},
	})
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(UserContextKey).(*model.User)
	if !ok || user == nil {
		return nil, apperrors.ErrMissingToken
	}
	return user, nil
}

// RequireAdmin rejects authenticated callers that are not admins. It must run after Authenticate.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := CurrentUser(c)
			if err != nil {
				return reject(err)
			}
			if err := auth.Authorize(user, auth.AdminOnly()); err != nil {
				return reject(err)
			}
			return next(c)
		}
	}
}

func reject(err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/internal/auth"
	"usermgmt/internal/handler"
	"usermgmt/internal/logging"
	"usermgmt/internal/metrics"
	"usermgmt/internal/model"
	"usermgmt/internal/repository"
	"usermgmt/internal/service"
	"usermgmt/internal/storage"
	"usermgmt/internal/testutil"
	"usermgmt/internal/validation"
)

const testSecret = "router-test-secret-0123456789"

type testAPI struct {
	t    *testing.T
	e    *echo.Echo
	repo repository.UserRepository
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	gdb := testutil.NewDB(t)
	repo := repository.NewUserRepository(gdb)
	store, err := storage.NewLocalImageStore(t.TempDir(), storage.DefaultMaxImageBytes)
	require.NoError(t, err)

	tokens := auth.NewJWTService(testSecret, 15*time.Minute, time.Hour)
	v := validation.New()
	logger := logging.Discard()
	authSvc := service.NewAuthService(repo, tokens, auth.NewBcryptHasher(4), store, v, logger)
	userSvc := service.NewUserService(repo, nil, time.Minute, store, v, logger)

	e := echo.New()
	Register(e, Handlers{
		Auth:   handler.NewAuthHandler(authSvc, store.MaxBytes(), logger),
		Users:  handler.NewUserHandler(userSvc, store.MaxBytes(), logger),
		Health: handler.NewHealthHandler(gdb, nil),
	}, Options{
		Gate:          auth.NewGate(tokens, auth.UserLookupFunc(userSvc.FindUser)),
		Logger:        logger,
		Registry:      metrics.NewRegistry(),
		UploadDir:     store.Dir(),
		MaxImageBytes: store.MaxBytes(),
		CORSOrigins:   []string{"https://admin.example.com"},
	})
	return &testAPI{t: t, e: e, repo: repo}
}

func (a *testAPI) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) json(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return a.do(req, token)
}

func (a *testAPI) multipart(method, path string, fields map[string]string, file *storage.Image, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("profile_image", file.Filename)
		require.NoError(a.t, err)
		_, err = fw.Write(file.Data)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return a.do(req, token)
}

func registration(n int) map[string]string {
	u := testutil.User(n, model.RoleUser)
	return map[string]string{
		"name":     "Test User",
		"email":    u.Email,
		"phone":    u.Phone,
		"password": "secret1",
		"state":    u.State,
		"city":     u.City,
		"country":  u.Country,
		"pincode":  u.Pincode,
	}
}

// register creates user n through the API and returns its access token.
func (a *testAPI) register(n int, role model.Role) (uint, string) {
	a.t.Helper()
	rec := a.json(http.MethodPost, "/api/auth/register", registration(n), "")
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		User model.User `json:"user"`
	}
	decode(a.t, rec, &body)
	if role == model.RoleAdmin {
		require.NoError(a.t, a.repo.UpdateFields(context.Background(), body.User.ID, map[string]any{"role": model.RoleAdmin}))
	}

	rec = a.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email_or_phone": body.User.Email,
		"password":       "secret1",
	}, "")
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var pair auth.TokenPair
	decode(a.t, rec, &pair)
	return body.User.ID, pair.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decode(t, rec, &body)
	return body.Code
}

func pngImage(t *testing.T, name string) *storage.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return &storage.Image{Filename: name, Data: buf.Bytes()}
}

func TestRegister(t *testing.T) {
	a := newAPI(t)

	rec := a.json(http.MethodPost, "/api/auth/register", registration(1), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
	assert.Contains(t, rec.Body.String(), `"status":"skipped"`)

	rec = a.json(http.MethodPost, "/api/auth/register", registration(1), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_ALREADY_REGISTERED", errorCode(t, rec))

	bad := registration(2)
	bad["phone"] = "12ab"
	bad["password"] = "secret"
	rec = a.json(http.MethodPost, "/api/auth/register", bad, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Fields, "phone")
	assert.Contains(t, body.Fields, "password")

	rec = a.json(http.MethodPost, "/api/auth/register", "not an object", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Multipart(t *testing.T) {
	a := newAPI(t)

	rec := a.multipart(http.MethodPost, "/api/auth/register", registration(1), pngImage(t, "avatar.png"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body handler.RegisterResponse
	decode(t, rec, &body)
	assert.Equal(t, "stored", body.ProfileImageUpload.Status)
	require.NotNil(t, body.User.ProfileImage)
	assert.Equal(t, "/uploads/user_1_avatar.png", *body.User.ProfileImage)

	img := a.do(httptest.NewRequest(http.MethodGet, "/uploads/user_1_avatar.png", nil), "")
	assert.Equal(t, http.StatusOK, img.Code)

	// A rejected image is reported but the account still exists.
	rec = a.multipart(http.MethodPost, "/api/auth/register", registration(2),
		&storage.Image{Filename: "notes.txt", Data: []byte("hello")}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &body)
	assert.Equal(t, "failed", body.ProfileImageUpload.Status)
	require.NotNil(t, body.ProfileImageUpload.Error)
	assert.Equal(t, "VALIDATION_FAILED", body.ProfileImageUpload.Error.Code)
	assert.Nil(t, body.User.ProfileImage)
}

func TestLogin(t *testing.T) {
	a := newAPI(t)
	a.register(1, model.RoleUser)
	creds := registration(1)

	rec := a.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email_or_phone": creds["phone"],
		"password":       creds["password"],
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair auth.TokenPair
	decode(t, rec, &pair)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	form := url.Values{"username": {creds["email"]}, "password": {creds["password"]}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = a.do(req, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	wrong := a.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email_or_phone": creds["email"], "password": "nope123",
	}, "")
	unknown := a.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email_or_phone": "ghost@example.com", "password": creds["password"],
	}, "")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestRefresh(t *testing.T) {
	a := newAPI(t)
	_, access := a.register(1, model.RoleUser)

	rec := a.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": access}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN_TYPE", errorCode(t, rec))

	creds := registration(1)
	rec = a.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email_or_phone": creds["email"], "password": creds["password"],
	}, "")
	var pair auth.TokenPair
	decode(t, rec, &pair)

	rec = a.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var next auth.TokenPair
	decode(t, rec, &next)

	me := a.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), next.AccessToken)
	assert.Equal(t, http.StatusOK, me.Code)

	// A refresh token is not accepted where an access token is required.
	me = a.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
	assert.Equal(t, "INVALID_TOKEN_TYPE", errorCode(t, me))
}

func TestUsers_ReadAccess(t *testing.T) {
	a := newAPI(t)
	_, adminToken := a.register(1, model.RoleAdmin)
	aliceID, aliceToken := a.register(2, model.RoleUser)
	bobID, _ := a.register(3, model.RoleUser)

	get := func(path, token string) *httptest.ResponseRecorder {
		return a.do(httptest.NewRequest(http.MethodGet, path, nil), token)
	}

	assert.Equal(t, http.StatusOK, get("/api/users/"+itoa(aliceID), aliceToken).Code)
	assert.Equal(t, http.StatusForbidden, get("/api/users/"+itoa(bobID), aliceToken).Code)
	assert.Equal(t, http.StatusOK, get("/api/users/"+itoa(bobID), adminToken).Code)
	assert.Equal(t, http.StatusNotFound, get("/api/users/999", adminToken).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users/abc", adminToken).Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/users/"+itoa(aliceID), "").Code)

	rec := get("/api/users?page=1&page_size=2&search=user", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page service.Page
	decode(t, rec, &page)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 2)

	assert.Equal(t, http.StatusForbidden, get("/api/users", aliceToken).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users?page_size=101", adminToken).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users?page=0", adminToken).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users?page=abc", adminToken).Code)
}

func TestUsers_Update(t *testing.T) {
	a := newAPI(t)
	aliceID, aliceToken := a.register(1, model.RoleUser)
	_, bobToken := a.register(2, model.RoleUser)
	path := "/api/users/" + itoa(aliceID)

	rec := a.json(http.MethodPut, path, map[string]string{"city": "Mysuru", "role": "admin"}, aliceToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body handler.UpdateResponse
	decode(t, rec, &body)
	assert.Equal(t, "Mysuru", body.User.City)
	assert.Equal(t, "Karnataka", body.User.State)
	assert.Equal(t, model.RoleUser, body.User.Role)

	rec = a.multipart(http.MethodPut, path, map[string]string{"state": "Goa", "city": ""}, pngImage(t, "me.png"), aliceToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &body)
	assert.Equal(t, "Goa", body.User.State)
	assert.Equal(t, "Mysuru", body.User.City)
	assert.Equal(t, "stored", body.ProfileImageUpload.Status)

	rec = a.json(http.MethodPut, path, map[string]string{"email": registration(2)["email"]}, aliceToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.json(http.MethodPut, path, map[string]string{"city": "Pune"}, bobToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUsers_Delete(t *testing.T) {
	a := newAPI(t)
	adminID, adminToken := a.register(1, model.RoleAdmin)
	aliceID, aliceToken := a.register(2, model.RoleUser)

	del := func(id uint, token string) *httptest.ResponseRecorder {
		return a.do(httptest.NewRequest(http.MethodDelete, "/api/users/"+itoa(id), nil), token)
	}

	assert.Equal(t, http.StatusForbidden, del(adminID, aliceToken).Code)

	rec := del(adminID, adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANNOT_DELETE_SELF", errorCode(t, rec))

	rec = del(aliceID, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"profile_image_removal":{"status":"skipped"}`)

	get := a.do(httptest.NewRequest(http.MethodGet, "/api/users/"+itoa(aliceID), nil), adminToken)
	assert.Equal(t, http.StatusNotFound, get.Code)

	// Tokens are not revoked, but their subject no longer resolves.
	me := a.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), aliceToken)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(t, me))

	assert.Equal(t, http.StatusNotFound, del(aliceID, adminToken).Code)
}

func TestOperationalEndpoints(t *testing.T) {
	a := newAPI(t)

	rec := a.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestCORS_Preflight(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderOrigin, "https://admin.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := a.do(req, "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization)

	req = httptest.NewRequest(http.MethodOptions, "/api/users/1", nil)
	req.Header.Set(echo.HeaderOrigin, "https://admin.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPut)
	rec = a.do(req, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = a.do(req, "")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestUnmatchedRoutes(t *testing.T) {
	a := newAPI(t)

	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/auth/login", nil), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_BodyTooLarge(t *testing.T) {
	a := newAPI(t)

	big := &storage.Image{Filename: "huge.png", Data: bytes.Repeat([]byte{0}, int(storage.DefaultMaxImageBytes)+formOverheadBytes)}
	rec := a.multipart(http.MethodPost, "/api/auth/register", registration(1), big, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	exists, err := a.repo.ExistsByEmail(context.Background(), registration(1)["email"], 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

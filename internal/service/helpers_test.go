package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"usermgmt/internal/auth"
	"usermgmt/internal/cache"
	"usermgmt/internal/logging"
	"usermgmt/internal/model"
	"usermgmt/internal/repository"
	"usermgmt/internal/storage"
	"usermgmt/internal/testutil"
	"usermgmt/internal/validation"
)

const testSecret = "service-test-secret-0123456789"

type stack struct {
	repo   repository.UserRepository
	tokens *auth.JWTService
	store  *storage.LocalImageStore
	auth   AuthService
	users  UserService
}

func newStack(t *testing.T, c *cache.Client) *stack {
	t.Helper()
	repo := repository.NewUserRepository(testutil.NewDB(t))
	store, err := storage.NewLocalImageStore(t.TempDir(), storage.DefaultMaxImageBytes)
	require.NoError(t, err)

	tokens := auth.NewJWTService(testSecret, 15*time.Minute, time.Hour)
	v := validation.New()
	logger := logging.Discard()
	return &stack{
		repo:   repo,
		tokens: tokens,
		store:  store,
		auth:   NewAuthService(repo, tokens, auth.NewBcryptHasher(4), store, v, logger),
		users:  NewUserService(repo, c, time.Minute, store, v, logger),
	}
}

// seed stores fixture user n with the given role.
func (s *stack) seed(t *testing.T, n int, role model.Role) *model.User {
	t.Helper()
	u := testutil.User(n, role)
	require.NoError(t, s.repo.Create(context.Background(), u))
	return u
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Phone:    "9876543210",
		Password: "secret1",
		Address:  "12 MG Road",
		State:    "Karnataka",
		City:     "Bengaluru",
		Country:  "India",
		Pincode:  "560001",
	}
}

func pngImage(t *testing.T, name string) *storage.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return &storage.Image{Filename: name, Data: buf.Bytes()}
}

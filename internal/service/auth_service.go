package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"usermgmt/internal/auth"
	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/metrics"
	"usermgmt/internal/model"
	"usermgmt/internal/repository"
	"usermgmt/internal/storage"
	"usermgmt/internal/validation"
)

// dummyPassword is hashed once at startup and compared against on unknown identifiers.
const dummyPassword = "unknown-identifier-0"

// RegisterInput is the registration payload, bound from JSON or a multipart form.
type RegisterInput struct {
	Name     string `json:"name" form:"name" validate:"required,min=3,max=100,alphaspace"`
	Email    string `json:"email" form:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone" form:"phone" validate:"required,digits,min=10,max=15"`
	Password string `json:"password" form:"password" validate:"required,min=6,maxbytes=72,containsany=0123456789"`
	Address  string `json:"address" form:"address" validate:"omitempty,max=150"`
	State    string `json:"state" form:"state" validate:"required,max=50"`
	City     string `json:"city" form:"city" validate:"required,max=50"`
	Country  string `json:"country" form:"country" validate:"required,max=50"`
	Pincode  string `json:"pincode" form:"pincode" validate:"required,digits,min=4,max=10"`
}

func (in *RegisterInput) trim() {
	for _, p := range []*string{&in.Name, &in.Email, &in.Phone, &in.Address, &in.State, &in.City, &in.Country, &in.Pincode} {
		*p = strings.TrimSpace(*p)
	}
}

// LoginInput accepts the identifier as email_or_phone in JSON or username in an OAuth2 password form.
type LoginInput struct {
	Identifier string `json:"email_or_phone" form:"username" validate:"required"`
	Password   string `json:"password" form:"password" validate:"required"`
}

// RefreshInput carries the refresh token to exchange.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" validate:"required"`
}

// RegisterResult is the created user plus the outcome of the optional image upload.
type RegisterResult struct {
	User  *model.User
	Image ImageOutcome
}

// AuthService handles registration and token issuance.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput, img *storage.Image) (*RegisterResult, error)
	Login(ctx context.Context, in LoginInput) (*auth.TokenPair, error)
	Refresh(ctx context.Context, in RefreshInput) (*auth.TokenPair, error)
}

type authService struct {
	repo      repository.UserRepository
	tokens    *auth.JWTService
	hasher    auth.PasswordHasher
	validator *validation.Validator
	images    imageOps
	logger    *slog.Logger
	dummyHash string
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	repo repository.UserRepository,
	tokens *auth.JWTService,
	hasher auth.PasswordHasher,
	images storage.ImageStore,
	validator *validation.Validator,
	logger *slog.Logger,
) AuthService {
	// An empty dummy hash still fails Verify, only faster.
	dummyHash, _ := hasher.Hash(dummyPassword)
	return &authService{
		repo:      repo,
		tokens:    tokens,
		hasher:    hasher,
		validator: validator,
		images:    imageOps{repo: repo, images: images, logger: logger},
		logger:    logger,
		dummyHash: dummyHash,
	}
}

// Register validates input, enforces uniqueness and creates a user with the user role. The image,
// when given, is stored afterwards and its failure never undoes the registration.
func (s *authService) Register(ctx context.Context, in RegisterInput, img *storage.Image) (result *RegisterResult, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	in.trim()
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if err := checkUnique(ctx, s.repo, in.Email, in.Phone, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal("hash password", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		State:        in.State,
		City:         in.City,
		Country:      in.Country,
		Pincode:      in.Pincode,
		Role:         model.RoleUser,
	}
	if in.Address != "" {
		user.Address = &in.Address
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, writeError(ctx, s.repo, "create user", err, in.Email, in.Phone, 0)
	}
	s.logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))

	result = &RegisterResult{User: user, Image: skippedImage()}
	if img != nil {
		result.Image = s.images.replace(ctx, user.ID, nil, img)
		if result.Image.Status == ImageStored {
			path := result.Image.Path
			user.ProfileImage = &path
		}
	}
	return result, nil
}

// Login exchanges an email or phone and password for a token pair. Unknown identifiers and wrong
// passwords are indistinguishable.
func (s *authService) Login(ctx context.Context, in LoginInput) (pair *auth.TokenPair, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmailOrPhone(ctx, in.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.hasher.Verify(in.Password, s.dummyHash)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Internal("find user", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	pair, err = s.tokens.GeneratePair(user.ID)
	if err != nil {
		return nil, apperrors.Internal("generate tokens", err)
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token stays valid until it
// expires.
func (s *authService) Refresh(ctx context.Context, in RefreshInput) (pair *auth.TokenPair, err error) {
	defer func() { metrics.ObserveAuth("refresh", err) }()

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	claims, err := s.tokens.ValidateToken(in.RefreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnknownSubject
		}
		return nil, apperrors.Internal("find user", err)
	}

	pair, err = s.tokens.GeneratePair(user.ID)
	if err != nil {
		return nil, apperrors.Internal("generate tokens", err)
	}
	return pair, nil
}

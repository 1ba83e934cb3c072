package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"usermgmt/internal/auth"
	"usermgmt/internal/cache"
	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/model"
	"usermgmt/internal/repository"
	"usermgmt/internal/storage"
	"usermgmt/internal/validation"
)

const (
	defaultUserCacheTTL = 5 * time.Minute

	DefaultPage     = 1
	DefaultPageSize = 10
)

// UpdateInput is a partial profile update. Nil fields are left unchanged. Role and password are not
// part of it.
type UpdateInput struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=3,max=100,alphaspace"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,digits,min=10,max=15"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=150"`
	State   *string `json:"state,omitempty" validate:"omitempty,min=1,max=50"`
	City    *string `json:"city,omitempty" validate:"omitempty,min=1,max=50"`
	Country *string `json:"country,omitempty" validate:"omitempty,min=1,max=50"`
	Pincode *string `json:"pincode,omitempty" validate:"omitempty,digits,min=4,max=10"`
}

func (in UpdateInput) columns() map[string]any {
	cols := make(map[string]any)
	set := func(column string, v *string) {
		if v != nil {
			cols[column] = *v
		}
	}
	set("name", in.Name)
	set("email", in.Email)
	set("phone", in.Phone)
	set("state", in.State)
	set("city", in.City)
	set("country", in.Country)
	set("pincode", in.Pincode)
	if in.Address != nil {
		if *in.Address == "" {
			cols["address"] = nil
		} else {
			cols["address"] = *in.Address
		}
	}
	return cols
}

func (in *UpdateInput) trim() {
	for _, p := range []*string{in.Name, in.Email, in.Phone, in.Address, in.State, in.City, in.Country, in.Pincode} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

// UpdateResult is the updated user plus the outcome of the optional image replacement.
type UpdateResult struct {
	User  *model.User
	Image ImageOutcome
}

// DeleteResult reports the outcome of removing the deleted user's image.
type DeleteResult struct {
	Image ImageOutcome
}

// ListQuery pages and filters the admin listing.
type ListQuery struct {
	Page     int    `json:"page" validate:"gte=1"`
	PageSize int    `json:"page_size" validate:"gte=1,lte=100"`
	Search   string `json:"search"`
	State    string `json:"state"`
	City     string `json:"city"`
}

// DefaultListQuery is the first page with the default page size.
func DefaultListQuery() ListQuery {
	return ListQuery{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Page is one page of the admin listing.
type Page struct {
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	Data       []model.User `json:"data"`
}

// UserService exposes profile operations. Every method taking an actor authorizes it first.
type UserService interface {
	// FindUser loads a user without authorization. It backs token subject resolution.
	FindUser(ctx context.Context, id uint) (*model.User, error)
	GetProfile(ctx context.Context, actor *model.User, id uint) (*model.User, error)
	UpdateProfile(ctx context.Context, actor *model.User, id uint, in UpdateInput, img *storage.Image) (*UpdateResult, error)
	DeleteUser(ctx context.Context, actor *model.User, id uint) (*DeleteResult, error)
	ListUsers(ctx context.Context, actor *model.User, q ListQuery) (*Page, error)
}

type userService struct {
	repo      repository.UserRepository
	cache     *cache.Client
	cacheTTL  time.Duration
	store     storage.ImageStore
	images    imageOps
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService builds a UserService with repository and cache. A nil cache disables caching.
func NewUserService(
	repo repository.UserRepository,
	cache *cache.Client,
	cacheTTL time.Duration,
	images storage.ImageStore,
	validator *validation.Validator,
	logger *slog.Logger,
) UserService {
	if cacheTTL <= 0 {
		cacheTTL = defaultUserCacheTTL
	}
	return &userService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		store:     images,
		images:    imageOps{repo: repo, images: images, logger: logger},
		validator: validator,
		logger:    logger,
	}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *userService) evict(ctx context.Context, id uint) {
	_ = s.cache.Delete(ctx, s.cacheKey(id))
}

func (s *userService) FindUser(ctx context.Context, id uint) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, s.cacheTTL)
	}
	return user, nil
}

// load reads a user straight from the repository.
func (s *userService) load(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal("find user", err)
	}
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, actor *model.User, id uint) (*model.User, error) {
	if err := auth.Authorize(actor, auth.SelfOrAdmin(id)); err != nil {
		return nil, err
	}
	return s.FindUser(ctx, id)
}

// UpdateProfile validates every supplied field and the image before changing anything, then applies
// the fields and finally replaces the image on a best-effort basis.
func (s *userService) UpdateProfile(ctx context.Context, actor *model.User, id uint, in UpdateInput, img *storage.Image) (*UpdateResult, error) {
	if err := auth.Authorize(actor, auth.SelfOrAdmin(id)); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	in.trim()
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if img != nil {
		if err := s.store.Validate(img); err != nil {
			return nil, err
		}
	}

	var email, phone string
	if in.Email != nil && *in.Email != current.Email {
		email = *in.Email
	}
	if in.Phone != nil && *in.Phone != current.Phone {
		phone = *in.Phone
	}
	if err := checkUnique(ctx, s.repo, email, phone, id); err != nil {
		return nil, err
	}

	if cols := in.columns(); len(cols) > 0 {
		if err := s.repo.UpdateFields(ctx, id, cols); err != nil {
			return nil, writeError(ctx, s.repo, "update user", err, email, phone, id)
		}
	}

	result := &UpdateResult{Image: skippedImage()}
	if img != nil {
		result.Image = s.images.replace(ctx, id, current.ProfileImage, img)
	}
	s.evict(ctx, id)

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	result.User = user
	s.logger.Info("user updated", slog.Uint64("user_id", uint64(id)), slog.Uint64("actor_id", uint64(actor.ID)))
	return result, nil
}

// DeleteUser removes a user and then its image. Tokens already issued to the user are not revoked;
// they fail at subject resolution.
func (s *userService) DeleteUser(ctx context.Context, actor *model.User, id uint) (*DeleteResult, error) {
	if err := auth.Authorize(actor, auth.AdminOnly()); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, apperrors.ErrSelfDelete
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal("delete user", err)
	}
	s.evict(ctx, id)
	s.logger.Info("user deleted", slog.Uint64("user_id", uint64(id)), slog.Uint64("actor_id", uint64(actor.ID)))

	return &DeleteResult{Image: s.images.remove(ctx, id, user.ProfileImage)}, nil
}

func (s *userService) ListUsers(ctx context.Context, actor *model.User, q ListQuery) (*Page, error) {
	if err := auth.Authorize(actor, auth.AdminOnly()); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(q); err != nil {
		return nil, err
	}

	users, total, err := s.repo.List(ctx, repository.ListFilter{
		Search:   q.Search,
		State:    q.State,
		City:     q.City,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return nil, apperrors.Internal("list users", err)
	}
	if users == nil {
		users = []model.User{}
	}

	return &Page{
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int((total + int64(q.PageSize) - 1) / int64(q.PageSize)),
		Data:       users,
	}, nil
}

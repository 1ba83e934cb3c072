package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"usermgmt/internal/model"
)

// ListFilter narrows and pages the admin user listing.
type ListFilter struct {
	Search   string
	State    string
	City     string
	Page     int
	PageSize int
}

// UserRepository defines persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmailOrPhone(ctx context.Context, identifier string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error)
	ExistsByPhone(ctx context.Context, phone string, excludeID uint) (bool, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ListFilter) ([]model.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmailOrPhone matches identifier against both columns.
func (r *userRepository) FindByEmailOrPhone(ctx context.Context, identifier string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).
		Where("email = ? OR phone = ?", identifier, identifier).
		Order("id").
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail reports whether a user other than excludeID owns email. Pass 0 to check everyone.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

// ExistsByPhone reports whether a user other than excludeID owns phone. Pass 0 to check everyone.
func (r *userRepository) ExistsByPhone(ctx context.Context, phone string, excludeID uint) (bool, error) {
	return r.exists(ctx, "phone", phone, excludeID)
}

func (r *userRepository) exists(ctx context.Context, column, value string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateFields applies column updates to one user; updated_at is refreshed by GORM.
func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns one page of users matching filter plus the total match count.
func (r *userRepository) List(ctx context.Context, filter ListFilter) ([]model.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.User{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(state) LIKE ? OR LOWER(city) LIKE ?)",
			like, like, like, like)
	}
	if s := strings.TrimSpace(filter.State); s != "" {
		q = q.Where("LOWER(state) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if s := strings.TrimSpace(filter.City); s != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	offset := (filter.Page - 1) * filter.PageSize
	if err := q.Session(&gorm.Session{}).Order("id").Offset(offset).Limit(filter.PageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

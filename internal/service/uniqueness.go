package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/repository"
)

// checkUnique rejects an email or phone already held by a user other than excludeID.
// Empty values are not checked.
func checkUnique(ctx context.Context, repo repository.UserRepository, email, phone string, excludeID uint) error {
	if email != "" {
		taken, err := repo.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return apperrors.Internal("check email", err)
		}
		if taken {
			return apperrors.ErrEmailTaken
		}
	}
	if phone != "" {
		taken, err := repo.ExistsByPhone(ctx, phone, excludeID)
		if err != nil {
			return apperrors.Internal("check phone", err)
		}
		if taken {
			return apperrors.ErrPhoneTaken
		}
	}
	return nil
}

// writeError turns a failed insert or update into a domain error. A unique-constraint violation
// that slipped past checkUnique (a concurrent writer) becomes the same conflict a pre-check reports.
func writeError(ctx context.Context, repo repository.UserRepository, op string, err error, email, phone string, excludeID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Internal(op, err)
	}
	if conflict := checkUnique(ctx, repo, email, phone, excludeID); apperrors.Is(conflict, apperrors.KindConflict) {
		return conflict
	}
	return apperrors.ErrEmailTaken
}

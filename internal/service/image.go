package service

import (
	"context"
	"log/slog"

	"usermgmt/internal/repository"
	"usermgmt/internal/storage"
)

// ImageStatus is the result of a best-effort profile image side effect.
type ImageStatus string

const (
	ImageSkipped ImageStatus = "skipped"
	ImageStored  ImageStatus = "stored"
	ImageRemoved ImageStatus = "removed"
	ImageFailed  ImageStatus = "failed"
)

// ImageOutcome is reported next to the primary result; its error never fails the request.
type ImageOutcome struct {
	Status ImageStatus
	Path   string
	Err    error
}

// Failed reports whether the side effect was attempted and did not complete.
func (o ImageOutcome) Failed() bool {
	return o.Status == ImageFailed
}

func skippedImage() ImageOutcome {
	return ImageOutcome{Status: ImageSkipped}
}

// imageOps performs the image side effects shared by registration, update and delete.
type imageOps struct {
	repo   repository.UserRepository
	images storage.ImageStore
	logger *slog.Logger
}

// replace removes old (if any), stores img and points the user at it. When the old file is gone
// but the new one could not be stored, the reference is cleared so it never dangles.
func (o imageOps) replace(ctx context.Context, userID uint, old *string, img *storage.Image) ImageOutcome {
	removed := false
	if old != nil {
		if err := o.images.Delete(ctx, *old); err != nil {
			o.logger.Warn("remove previous profile image", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		} else {
			removed = true
		}
	}

	path, err := o.images.Save(ctx, userID, img)
	if err != nil {
		o.logger.Warn("store profile image", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		if removed {
			if clearErr := o.repo.UpdateFields(ctx, userID, map[string]any{"profile_image": nil}); clearErr != nil {
				o.logger.Warn("clear profile image reference", slog.Uint64("user_id", uint64(userID)), slog.Any("error", clearErr))
			}
		}
		return ImageOutcome{Status: ImageFailed, Err: err}
	}

	if err := o.repo.UpdateFields(ctx, userID, map[string]any{"profile_image": path}); err != nil {
		o.logger.Warn("save profile image reference", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		_ = o.images.Delete(ctx, path)
		return ImageOutcome{Status: ImageFailed, Err: err}
	}
	return ImageOutcome{Status: ImageStored, Path: path}
}

// remove deletes the file behind ref.
func (o imageOps) remove(ctx context.Context, userID uint, ref *string) ImageOutcome {
	if ref == nil {
		return skippedImage()
	}
	if err := o.images.Delete(ctx, *ref); err != nil {
		o.logger.Warn("remove profile image", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return ImageOutcome{Status: ImageFailed, Path: *ref, Err: err}
	}
	return ImageOutcome{Status: ImageRemoved, Path: *ref}
}

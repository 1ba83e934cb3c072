// Command seed creates the initial admin account. It is idempotent: an existing account with the
// same email is left untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"usermgmt/internal/auth"
	"usermgmt/internal/config"
	"usermgmt/internal/db"
	"usermgmt/internal/logging"
	"usermgmt/internal/model"
	"usermgmt/internal/repository"
	"usermgmt/internal/service"
	"usermgmt/internal/validation"
)

func main() {
	in := service.RegisterInput{}
	flag.StringVar(&in.Name, "name", envOr("ADMIN_NAME", "Admin User"), "admin display name")
	flag.StringVar(&in.Email, "email", envOr("ADMIN_EMAIL", "admin@example.com"), "admin email")
	flag.StringVar(&in.Phone, "phone", envOr("ADMIN_PHONE", "9999999999"), "admin phone (10-15 digits)")
	flag.StringVar(&in.Password, "password", os.Getenv("ADMIN_PASSWORD"), "admin password (at least 6 characters with a digit)")
	flag.StringVar(&in.State, "state", envOr("ADMIN_STATE", "State"), "admin state")
	flag.StringVar(&in.City, "city", envOr("ADMIN_CITY", "City"), "admin city")
	flag.StringVar(&in.Country, "country", envOr("ADMIN_COUNTRY", "Country"), "admin country")
	flag.StringVar(&in.Pincode, "pincode", envOr("ADMIN_PINCODE", "12345"), "admin pincode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "usermgmt-seed", cfg.Env)

	if err := seedAdmin(context.Background(), cfg, in, logger); err != nil {
		logger.Error("seed admin", slog.Any("error", err))
		os.Exit(1)
	}
}

func seedAdmin(ctx context.Context, cfg *config.Config, in service.RegisterInput, logger *slog.Logger) error {
	if err := validation.New().Struct(in); err != nil {
		return err
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	repo := repository.NewUserRepository(gormDB)

	exists, err := repo.ExistsByEmail(ctx, in.Email, 0)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if exists {
		logger.Info("admin already exists", slog.String("email", in.Email))
		return nil
	}

	hash, err := auth.NewBcryptHasher(cfg.BcryptCost).Hash(in.Password)
	if err != nil {
		return err
	}
	admin := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		State:        in.State,
		City:         in.City,
		Country:      in.Country,
		Pincode:      in.Pincode,
		Role:         model.RoleAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("admin created", slog.Uint64("user_id", uint64(admin.ID)), slog.String("email", admin.Email))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seed inserts development sample data for local testing: an admin, a member and a few assets.
// Idempotent: rows that already exist (by username or asset name) are skipped, except that an
// explicit SEED_ADMIN_PASSWORD resets the admin's password when it no longer matches.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	assetdomain "github.com/kennarddh/asset-management-sub000/internal/asset/domain"
	assetrepo "github.com/kennarddh/asset-management-sub000/internal/asset/repository"
	"github.com/kennarddh/asset-management-sub000/internal/config"
	"github.com/kennarddh/asset-management-sub000/internal/db"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/security"
	userdomain "github.com/kennarddh/asset-management-sub000/internal/user/domain"
	userrepo "github.com/kennarddh/asset-management-sub000/internal/user/repository"
)

const (
	devPassword    = "password123"
	memberUsername = "member"
)

var sampleAssets = []assetdomain.Asset{
	{Name: "Projector", Description: "1080p portable projector", Quantity: 3},
	{Name: "DSLR Camera", Description: "Camera body with 24-70mm lens", Quantity: 2, RequiresApproval: true},
	{Name: "Laptop", Description: "14-inch loaner laptop", Quantity: 5, RequiresApproval: true},
	{Name: "Tripod", Description: "Aluminium tripod", Quantity: 4},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")
	defer func() { _ = logger.Sync() }()

	adminPassword := cfg.SeedAdminPassword
	if adminPassword == "" {
		if cfg.IsProduction() {
			logger.Fatal("SEED_ADMIN_PASSWORD is required in production")
		}
		adminPassword = devPassword
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	iso, err := uow.ParseIsolation(cfg.DBTxIsolation)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	manager := uow.NewManager(pool, iso, logger)

	users := userrepo.NewPostgresRepository(manager, logger)
	assets := assetrepo.NewPostgresRepository(manager, logger)
	hasher := security.NewHasher(cfg.BcryptCost)

	err = manager.Execute(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		if err := seedUser(ctx, users, hasher, cfg.SeedAdminUsername, "Administrator", adminPassword, userdomain.RoleAdmin, now, cfg.SeedAdminPassword != ""); err != nil {
			return err
		}
		if !cfg.IsProduction() {
			if err := seedUser(ctx, users, hasher, memberUsername, "Member User", devPassword, userdomain.RoleMember, now, false); err != nil {
				return err
			}
		}
		for _, a := range sampleAssets {
			existing, err := assets.GetByName(ctx, a.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			a.ID = uuid.New().String()
			a.CreatedAt, a.UpdatedAt = now, now
			if err := a.Validate(); err != nil {
				return fmt.Errorf("asset %q: %w", a.Name, err)
			}
			if err := assets.Create(ctx, &a); err != nil {
				return err
			}
			logger.Info("seeded asset", zap.String("name", a.Name), zap.Bool("requiresApproval", a.RequiresApproval))
		}
		return nil
	})
	if err != nil {
		logger.Fatal("seed", zap.Error(err))
	}

	logger.Info("seed completed")
	fmt.Printf("Admin login: %s\n", cfg.SeedAdminUsername)
	if !cfg.IsProduction() {
		fmt.Printf("Member login: %s / %s\n", memberUsername, devPassword)
	}
}

func seedUser(ctx context.Context, users *userrepo.PostgresRepository, hasher *security.Hasher, username, name, password string, role userdomain.Role, now time.Time, resetPassword bool) error {
	existing, err := users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		if !resetPassword || hasher.Compare(existing.PasswordHash, []byte(password)) == nil {
			return nil
		}
		hash, err := hasher.Hash([]byte(password))
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		existing.PasswordHash = hash
		existing.UpdatedAt = now
		return users.Update(ctx, existing)
	}
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	return users.Create(ctx, u)
}

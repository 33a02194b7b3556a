package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage"
	"github.com/doj-records/records/internal/storage/filestore"
	"github.com/doj-records/records/internal/storage/record"
	"github.com/doj-records/records/internal/users"
)

func main() {
	dir := getenv("DATA_DIR", "data")
	password := getenv("SEED_ADMIN_PASSWORD", "admin")

	fmt.Println("→ Seeding", dir)
	if err := seed(context.Background(), dir, password, slog.Default()); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seed writes the default roles and the initial administrator. A collection
// file that already exists is never touched.
func seed(ctx context.Context, dir, password string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := filestore.New(dir, nil, logger)
	if err != nil {
		return err
	}
	store := storage.New(files, nil, nil, logger, nil)

	if files.Exists(shared.CollectionRoles) {
		fmt.Println("  roles exist, skipping")
	} else {
		svc := roles.NewService(roles.NewRepository(store, logger), logger)
		for _, r := range roles.Defaults() {
			if _, _, err := svc.Save(ctx, r); err != nil {
				return fmt.Errorf("seed role %s: %w", r.ID, err)
			}
		}
	}

	if files.Exists(shared.CollectionUsers) {
		fmt.Println("  users exist, skipping")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := users.User{
		ID:       "admin",
		Username: "OConnor",
		Role:     "Administrator",
		IsAdmin:  true,
		Status:   "active",
	}
	if _, err := users.NewRepository(store, logger).Create(ctx, admin, record.Record{"password": string(hash)}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

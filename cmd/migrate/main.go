// Command migrate applies the database schema:
//
//	go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"log"

	"defectmaster-backend/internal/shared/config"
	"defectmaster-backend/internal/shared/storage/db"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sqlDB.Close()

	return db.RunMigrations(ctx, sqlDB)
}

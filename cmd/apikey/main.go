// Command apikey creates a new bearer API key in the database. It is
// not a production-grade tool, just a simple utility for
// development/testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/mono/internal/config"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/infrastructure/keygen"
	"github.com/rezkam/mono/internal/infrastructure/persistence/postgres"
)

func main() {
	name := flag.String("name", "", "Name/description for the API key (required)")
	days := flag.Int("days", 0, "Number of days until expiration (0 = never expires)")
	dbURL := flag.String("database-url", os.Getenv("MONO_DATABASE_URL"), "PostgreSQL connection URL")
	flag.Parse()

	if *dbURL != "" {
		os.Setenv("MONO_DATABASE_URL", *dbURL)
	}

	cfg, err := config.LoadAPIKeyGenConfig(*name, *days)
	if err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	var expiresAt *time.Time
	if cfg.DaysValid > 0 {
		expiry := time.Now().UTC().AddDate(0, 0, cfg.DaysValid)
		expiresAt = &expiry
	}

	parts, err := keygen.GenerateAPIKey(cfg.APIKey.KeyType, cfg.APIKey.Service, cfg.APIKey.Version)
	if err != nil {
		log.Fatalf("failed to generate API key: %v", err)
	}

	key := &domain.APIKey{
		ID:             uuid.NewString(),
		KeyType:        parts.KeyType,
		Service:        parts.Service,
		Version:        parts.Version,
		ShortToken:     parts.ShortToken,
		LongSecretHash: keygen.HashSecret(parts.LongSecret),
		Name:           cfg.Name,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}

	if err := store.Create(ctx, key); err != nil {
		log.Fatalf("failed to store API key: %v", err)
	}

	fmt.Println("\nAPI key created successfully")
	fmt.Println("----------------------------------------")
	fmt.Printf("Name: %s\n", cfg.Name)
	if expiresAt != nil {
		fmt.Printf("Expires: %s (%d days)\n", expiresAt.Format(time.RFC3339), cfg.DaysValid)
	} else {
		fmt.Println("Expires: never")
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("\nAPI key: %s\n\n", parts.FullKey)
	fmt.Println("Save this key now; it will not be shown again.")
}

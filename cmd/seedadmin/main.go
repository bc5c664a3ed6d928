// Command seedadmin creates the first administrator account for an employee
// already present in the HR directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/beesrs/identity/internal/cryptox"
	"github.com/beesrs/identity/internal/logging"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/config"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
	"github.com/beesrs/identity/internal/server/services"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("seedadmin: %v", err)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	email, password, err := collectInput(args, in, out)
	if err != nil {
		return err
	}

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	hasher, err := cryptox.NewHasher(cryptox.DefaultParams)
	if err != nil {
		return err
	}

	svc := services.NewAuthService(db, rm, cfg, services.Dependencies{
		Hasher: hasher,
		Tokens: auth.NewManager([]byte(cfg.SecretKey), cfg.Issuer, cfg.AccessTokenValidityDuration),
		Logger: logging.New(os.Stderr, cfg.LogLevel),
	})

	admin, err := svc.CreateAdmin(ctx, services.CreateAdminRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Admin %s created (id %s, roles %v)\n", admin.Email, admin.ID, admin.Roles)
	return err
}

// Command seeduser creates or updates a login user with a bcrypt PIN hash.
//
// Usage:
//
//	seeduser -id u-admin -name "Admin" -role admin -pin 1234
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/lavadero/api"
	"github.com/warp/lavadero/config"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/store/sqlite"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	id := flag.String("id", "u-admin", "user id")
	name := flag.String("name", "Administrador", "display name")
	role := flag.String("role", string(ledger.RoleAdmin), "super_admin | admin | gestor")
	pin := flag.String("pin", "1234", "numeric PIN, 4 to 8 digits")
	flag.Parse()

	if !ledger.Role(*role).Valid() {
		log.Fatal().Str("role", *role).Msg("unknown role")
	}
	if len(*pin) < 4 || len(*pin) > 8 {
		log.Fatal().Msg("pin must have 4 to 8 digits")
	}

	hash, err := api.HashPIN(*pin)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("db open error")
	}
	defer store.Close()

	u := ledger.User{
		ID:        ledger.UserID(*id),
		Name:      *name,
		Role:      ledger.Role(*role),
		PinHash:   hash,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := store.SaveUser(context.Background(), u); err != nil {
		log.Fatal().Err(err).Msg("save user error")
	}
	fmt.Printf("user %q (%s) saved in %s\n", u.ID, u.Role, *dbPath)
}

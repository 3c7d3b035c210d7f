// cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/config"
	"github.com/dukerupert/freyja/internal/database"
)

// migrate applies or reports the status of the embedded goose migrations
// against the configured database, for operators who want to run
// migrations ahead of a deploy rather than let cmd/server apply them on
// startup.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFormatUnix}).With().Timestamp().Logger()

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|status]")
	}
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.NewDB(context.Background(), cfg.DB.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	switch cmd {
	case "up":
		if err := db.RunMigrations(cfg.DB.DSN); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations applied")
	case "status":
		if err := db.MigrationStatus(cfg.DB.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to read migration status")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

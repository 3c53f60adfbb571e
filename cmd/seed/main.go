// seed loads events and their ticket types from a YAML file into the
// ticketing database. Events are matched by ID, so the file can be applied
// again after edits without disturbing sales already made.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tixly-ticketing/internal/catalog"
	catalogdb "tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/config"
	"tixly-ticketing/internal/database"
	"tixly-ticketing/internal/database/migrations"
	"tixly-ticketing/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()

	var filePath string
	var migrate, down bool

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&filePath, "file", "cmd/seed/events.yaml", "path to the YAML seed file")
	flagSet.StringVar(&cfg.Database.DSN, "dsn", cfg.Database.DSN, "PostgreSQL connection string (default from POSTGRES_DSN)")
	flagSet.StringVar(&cfg.Migration.Dir, "migrations", cfg.Migration.Dir, "read migrations from this directory instead of the built-in set")
	flagSet.BoolVar(&migrate, "migrate", false, "apply schema migrations before seeding")
	flagSet.BoolVar(&down, "down", false, "roll back every migration and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	log := logger.NewLogger("seed", logger.ParseLevel(cfg.LogLevel))
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Migration.Dir}, log)
	defer runner.Close()

	if down {
		if err := runner.MigrateDown(); err != nil {
			return err
		}
		log.Info("MIGRATION", "All migrations rolled back")
		return nil
	}
	if migrate {
		if err := runner.RunMigrations(); err != nil {
			return err
		}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	file, err := catalog.ParseSeed(f)
	if err != nil {
		return err
	}

	svc := catalog.NewCatalogService(&catalogdb.DB{Bun: bunDB}, clock.NewSystem(), log)
	n, err := svc.Seed(ctx, file)
	if err != nil {
		return err
	}
	log.Info("SEED", fmt.Sprintf("Seeded %d events from %s", n, filePath))
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: seed [flags]\n\nLoad events and ticket types from a YAML file.\n\nFlags:\n")
	flagSet.PrintDefaults()
}

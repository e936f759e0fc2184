package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/db"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	"github.com/angelmondragon/listingforge-backend/pkg/migrate"
)

const usage = "migration command: up|down|status|version|create|validate|seed-channels"

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", usage)
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	embedded := flag.Bool("embedded", false, "use the migrations compiled into the binary instead of -dir")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work on files only.
	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		err := migrate.ValidateDir(*dir)
		if *embedded {
			err = migrate.ValidateEmbedded()
		}
		if err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"dir":      *dir,
		"embedded": *embedded,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if *cmd == "seed-channels" {
		svc, err := channels.NewService(channels.NewRepository(dbClient.DB()))
		requireResource(ctx, logg, "channel service", err)
		requireResource(ctx, logg, "channel catalog", svc.Seed(ctx, channels.DefaultCatalog()))
		logg.Info(ctx, "channel catalog seeded")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "up", "down", "status":
		if err := runGoose(ctx, sqlDB, *dir, *embedded, *cmd); err != nil {
			exitf("goose %s failed: %v", *cmd, err)
		}

	case "version":
		if *version == "" {
			exitf("missing -version for version command")
		}
		if *embedded {
			exitf("-cmd=version reads migrations from -dir; drop -embedded")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			exitf("goose version migrate failed: %v", err)
		}

	default:
		exitf("unknown -cmd value %q (%s)", *cmd, usage)
	}
	logg.Info(ctx, "migrate finished")
}

func runGoose(ctx context.Context, sqlDB *sql.DB, dir string, embedded bool, command string) error {
	if embedded {
		return migrate.RunEmbedded(ctx, sqlDB, command)
	}
	return migrate.Run(ctx, sqlDB, dir, command)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}

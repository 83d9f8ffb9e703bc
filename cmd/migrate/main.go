package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", migrate.CmdUp, "up|down|redo|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory; empty runs the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work on the source tree and need no database
	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(orDefault(*dir), *name)
		exitOn("create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn("validate migrations", migrate.ValidateDir(orDefault(*dir)))
		fmt.Println("migrations valid")
		return
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if cfg.DB.IsSQLite() {
		logg.Warn(ctx, "sqlite schema is applied by the db client; nothing to migrate")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	sources, err := migrate.Sources(*dir)
	requireResource(ctx, logg, "migration sources", err)
	runner, err := migrate.NewRunner(sqlDB, sources, logg)
	requireResource(ctx, logg, "migration runner", err)

	if err := runner.Exec(ctx, *cmd, *target); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func exitOn(action string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

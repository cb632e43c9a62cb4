package main

import (
	"errors"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"

	"github.com/Ovsov/tecret-anta/internal/config"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	dir := flags.String("dir", "db/migrations", "directory holding the SQL migrations")
	down := flags.Bool("down", false, "roll back every migration instead of applying them")
	steps := flags.Int("steps", 0, "apply (or with --down, roll back) only this many migrations")
	create := flags.String("create", "", "write an empty migration pair with this name and exit")
	_ = flags.Parse(os.Args[1:])

	if *create != "" {
		up, down, err := createMigration(*dir, *create)
		if err != nil {
			log.Fatalf("create migration: %v", err)
		}
		log.Printf("created %s and %s", up, down)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Printf("failed to load %s: %v", *envFile, err)
	}

	m, err := migrate.New("file://"+*dir, mustDatabaseURL())
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	defer m.Close()

	switch {
	case *steps > 0 && *down:
		err = m.Steps(-*steps)
	case *steps > 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("database migration failed: %v", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("read migration version: %v", err)
	}
	log.Printf("database migrations applied (version %d, dirty %t)", version, dirty)
}

func mustDatabaseURL() string {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	return dsn
}

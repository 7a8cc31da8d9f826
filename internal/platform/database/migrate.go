package database

import (
	"errors"
	"fmt"
	"log"

	"bildung/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrate applies all pending schema migrations against the connected database.
func Migrate() {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatalf("Error loading embedded migrations: %v", err)
	}

	driver, err := pgx.WithInstance(DB, &pgx.Config{})
	if err != nil {
		log.Fatalf("Error preparing migration driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		log.Fatalf("Error initializing migrations: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Error running migrations: %v", err)
	}
	fmt.Println("Database migrations up to date.")
}

package db

import (
	"database/sql"
	"fmt"
	"log"

	"reviewguard-be/internal/config"

	_ "github.com/lib/pq"
)

// InitDB opens the postgres pool and verifies it with a ping. Failure ends
// the process.
func InitDB(cfg *config.Config) *sql.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open postgres pool: %v", err)
	}

	if err = db.Ping(); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}

	log.Println("postgres connection established")
	return db
}

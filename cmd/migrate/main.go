// migrate applies or rolls back the embedded schema migrations, or prints the current version.
package main

import (
	"flag"
	"log"

	"nexus-auth/backend/internal/config"
	"nexus-auth/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "up, down or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("%v; create a .env from .env.example or set DATABASE_URL", err)
	}

	if *direction == "version" {
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("schema version %d (dirty=%t)", v, dirty)
		return
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrate %s: done", *direction)
}

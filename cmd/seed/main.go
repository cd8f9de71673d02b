// Command seed fills the database with demo users and sits.
package main

import (
	"flag"
	"log"

	"sit/internal/config"
	"sit/internal/database"
	"sit/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "number of demo users to create")
	numSits := flag.Int("sits", 120, "number of demo sits to create")
	clean := flag.Bool("clean", false, "delete existing users and sits first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	err = seed.Demo(db, seed.Options{
		NumUsers:    *numUsers,
		NumSits:     *numSits,
		ShouldClean: *clean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}

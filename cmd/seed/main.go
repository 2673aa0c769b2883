package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sahilchouksey/course-commerce-api/config"
	"github.com/sahilchouksey/course-commerce-api/database"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
)

func main() {
	migrate := flag.Bool("migrate", true, "run AutoMigrate before seeding")
	flag.Parse()

	if err := config.LoadENV(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env file not found, using system environment variables")
	}
	env, err := config.Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, flush := logger.New(env.GO_ENV)
	defer flush()

	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrate {
		if err := store.Init(); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	if err := database.RunSeeds(store.DB(), log); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeding completed",
		"hint", "admin and staff accounts come from ADMIN_EMAIL/ADMIN_PASSWORD and STAFF_EMAIL/STAFF_PASSWORD")
}

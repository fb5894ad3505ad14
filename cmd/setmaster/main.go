// Package main provides a CLI tool for handing a game to a new master.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	gameID := flag.String("game", "", "target game id (required)")
	userID := flag.String("user", "", "user id of the new master (required)")
	flag.Parse()

	if *gameID == "" || *userID == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewGameRepository(pool.DB())

	prev, err := repo.MasterOf(ctx, *gameID)
	if err != nil {
		log.Fatalf("looking up game %q: %v", *gameID, err)
	}

	if err := repo.SetMaster(ctx, *gameID, *userID); err != nil {
		log.Fatalf("setting master: %v", err)
	}

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "set master for %s: %q -> %q [%s]\n", *gameID, prev, *userID, elapsed)
}

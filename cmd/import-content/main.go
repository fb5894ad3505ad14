// Package main seeds games, rosters and move presets into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/importer"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	manifest := flag.String("manifest", "", "path to the roster manifest (required)")
	movesDir := flag.String("moves", "", "move preset directory (default combat.presets_dir)")
	dryRun := flag.Bool("dry-run", false, "validate the manifest and presets without writing")
	flag.Parse()

	if *manifest == "" {
		fmt.Fprintln(os.Stderr, "usage: import-content -manifest <file> [-config <file>] [-moves <dir>] [-dry-run]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "import-content")
	if err != nil {
		fail("initializing logger: %v", err)
	}
	defer logger.Sync()

	if *movesDir == "" {
		*movesDir = cfg.Combat.PresetsDir
	}

	fs := afero.NewOsFs()
	m, err := importer.LoadManifest(fs, *manifest)
	if err != nil {
		fail("%v", err)
	}
	presets, err := combat.LoadPresets(fs, *movesDir)
	if err != nil {
		fail("%v", err)
	}
	if *dryRun {
		fmt.Printf("ok      %d game(s), %d preset(s)\n", len(m.Games), len(presets))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fail("connecting to database: %v", err)
	}
	defer pool.Close()

	imp := importer.New(
		postgres.NewGameRepository(pool.DB()),
		postgres.NewRosterRepository(pool.DB()),
		postgres.NewActionRepository(pool.DB()),
		logger,
	)
	sum, err := imp.Run(ctx, m, presets)
	if err != nil {
		logger.Error("import failed", zap.Error(err))
		fail("%v", err)
	}
	fmt.Printf("import complete: %d game(s), %d combatant(s), %d action(s), %d skipped in %s\n",
		sum.Games, sum.Combatants, sum.Actions, sum.Skipped, sum.Elapsed.Round(time.Millisecond))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// Package main provides the combat server binary: the HTTP/WebSocket API in
// front of the encounter engine.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/activity"
	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/frontend/api"
	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
	"github.com/cory-johannsen/skirmish/internal/importer"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
	"github.com/cory-johannsen/skirmish/internal/scripting"
	"github.com/cory-johannsen/skirmish/internal/server"
	"github.com/cory-johannsen/skirmish/internal/storage/memory"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

// stores groups the persistence interfaces the engine needs.
type stores struct {
	encounters encounter.Store
	roster     gameserver.RosterStore
	games      authz.Games
	actions    combat.ActionStore
	logs       combat.LogStore
	seed       *importer.Importer
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	seedPath := flag.String("seed", "", "optional roster manifest imported at startup")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "server")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting combat server",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("storage", cfg.Server.Storage),
		zap.String("bus", cfg.Bus.Driver),
	)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	var st stores
	switch cfg.Server.Storage {
	case "postgres":
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		games := postgres.NewGameRepository(pool.DB())
		roster := postgres.NewRosterRepository(pool.DB())
		actions := postgres.NewActionRepository(pool.DB())
		st = stores{
			encounters: postgres.NewEncounterRepository(pool.DB()),
			roster:     roster,
			games:      games,
			actions:    actions,
			logs:       postgres.NewCombatLogRepository(pool.DB()),
			seed:       importer.New(games, roster, actions, logger),
		}
		lifecycle.Add("postgres", healthService(pool, logger))
	default:
		mem := memory.New()
		st = stores{encounters: mem, roster: mem, games: mem, actions: mem, logs: mem,
			seed: importer.New(mem, mem, mem, logger)}
		logger.Warn("using in-memory storage; state is lost on exit")
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("connecting to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
	}

	var bus pubsub.Bus
	if cfg.Bus.Driver == "redis" {
		bus = pubsub.NewRedisBus(rdb, logger)
	} else {
		bus = pubsub.NewMemoryBus(logger)
	}
	defer bus.Close()

	var feed activity.Feed = activity.NewMemoryFeed(cfg.Combat.ActivityLimit)
	if rdb != nil {
		feed = activity.NewRedisFeed(rdb, cfg.Combat.ActivityLimit)
	}
	sink := activity.NewSink(logger, bus, feed)

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	resolverOpts := []combat.ResolverOption{combat.WithNotifier(sink)}
	if cfg.Combat.CriticalScript != "" {
		rules, err := scripting.LoadRulesFile(afero.NewOsFs(), cfg.Combat.CriticalScript, roller, logger, scripting.DefaultInstructionLimit)
		if err != nil {
			logger.Fatal("loading critical rule", zap.String("path", cfg.Combat.CriticalScript), zap.Error(err))
		}
		defer rules.Close()
		resolverOpts = append(resolverOpts, combat.WithCriticalRule(rules.CriticalRule()))
		logger.Info("critical rule loaded", zap.String("path", cfg.Combat.CriticalScript))
	}

	if *seedPath != "" {
		if err := seed(ctx, st.seed, *seedPath, cfg.Combat.PresetsDir, logger); err != nil {
			logger.Fatal("importing seed manifest", zap.String("path", *seedPath), zap.Error(err))
		}
	}

	handler := gameserver.NewCombatHandler(gameserver.Deps{
		Encounters: encounter.NewService(st.encounters, logger, encounter.Options{
			AllowReinforcements: cfg.Combat.AllowReinforcements,
		}),
		Resolver:  combat.NewResolver(st.roster, st.logs, roller, logger, resolverOpts...),
		Requester: confirm.NewRequester(ctx, bus, logger, cfg.Combat.ConfirmTimeout),
		Desk:      confirm.NewDesk(ctx, bus, logger),
		Auth:      authz.NewChecker(st.games, st.roster),
		Roster:    st.roster,
		Actions:   st.actions,
		Logs:      st.logs,
		Activity:  sink,
		Bus:       bus,
		Dice:      roller,
		Logger:    logger,
	})

	srv := api.NewServer(cfg.HTTP, cfg.Auth, handler, bus, logger)
	lifecycle.Add("http", &server.FuncService{
		StartFn: srv.Start,
		StopFn:  srv.Stop,
	})

	logger.Info("combat server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// healthService pings the database every 30 seconds until stopped.
func healthService(pool *postgres.Pool, logger *zap.Logger) server.Service {
	done := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					if err := pool.Health(context.Background(), 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func(context.Context) error {
			close(done)
			pool.Close()
			return nil
		},
	}
}

func seed(ctx context.Context, imp *importer.Importer, path, presetsDir string, logger *zap.Logger) error {
	fs := afero.NewOsFs()
	m, err := importer.LoadManifest(fs, path)
	if err != nil {
		return err
	}
	presets, err := combat.LoadPresets(fs, presetsDir)
	if err != nil {
		return err
	}
	sum, err := imp.Run(ctx, m, presets)
	if err != nil {
		return err
	}
	logger.Info("seed imported",
		zap.Int("games", sum.Games),
		zap.Int("combatants", sum.Combatants),
		zap.Int("actions", sum.Actions),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return nil
}

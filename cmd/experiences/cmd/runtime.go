package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/experiences/internal/core/api"
	"github.com/solatis/experiences/internal/core/config"
	"github.com/solatis/experiences/internal/core/db"
	"github.com/solatis/experiences/internal/engine"
	"github.com/solatis/experiences/internal/frequency"
)

// runtime is the wired service plus the resources to release.
type runtime struct {
	cfg     *config.Config
	service *api.Service
	events  *db.EventLog
	db      *sqlx.DB
}

func (r *runtime) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// loadConfig applies the persistent flags on top of viper's result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if storageURL != "" {
		cfg.Storage.URL = storageURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openRuntime opens storage and builds the engine and service.
// migrate applies pending migrations instead of requiring them.
func openRuntime(cfg *config.Config, migrate bool) (*runtime, error) {
	logger := slog.Default()
	rt := &runtime{cfg: cfg}

	var store frequency.KV = frequency.NewMemoryStore()
	if cfg.Storage.IsSQL() {
		database, err := db.Open(cfg.Storage.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		rt.db = database

		if migrate {
			ran, err := db.MigrateUp(database)
			if err != nil {
				rt.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
			if len(ran) > 0 {
				logger.Info("migrations applied", "migrations", ran)
			}
		} else if err := db.RequireMigrated(database); err != nil {
			rt.Close()
			return nil, err
		}

		queries, err := db.LoadQueries(database)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to load queries: %w", err)
		}
		store = db.NewSQLStore(queries, 0)
		if cfg.Engine.EventLog {
			rt.events = db.NewEventLog(queries, logger)
		}
	}

	e := engine.New(store,
		engine.WithLogger(logger),
		engine.WithDebug(cfg.Engine.Debug),
		engine.WithConsentRequired(cfg.Engine.ConsentRequired),
	)
	if rt.events != nil {
		rt.events.Attach(e)
	}

	service, err := api.NewService(e, rt.events, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.service = service

	if cfg.Engine.ExperiencesFile != "" {
		if _, err := service.LoadExperiences(cfg.Engine.ExperiencesFile); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to load experiences: %w", err)
		}
	}
	return rt, nil
}

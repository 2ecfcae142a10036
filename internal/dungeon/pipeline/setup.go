package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/dungeon-forge/internal/config"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/budget"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/catalog"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/donjon"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/extractor"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/poller"
	"github.com/cuongbtq/dungeon-forge/shared/logger"
)

// FromConfig wires a Pipeline against the donjon service described by cfg.
// A configured catalog path enables encounter population.
func FromConfig(cfg *config.Config, base *slog.Logger) (*Pipeline, error) {
	if base == nil {
		base = logger.Discard()
	}

	client, err := donjon.NewClient(donjon.Options{
		BaseURL:   cfg.Donjon.BaseURL,
		NameURL:   cfg.Donjon.NameURL,
		Timeout:   cfg.Donjon.HTTPTimeout,
		UserAgent: cfg.Donjon.UserAgent,
		Logger:    logger.Component(base, "donjon"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create donjon client: %w", err)
	}

	jobPoller, err := poller.New(&poller.Config{
		Fetcher:     client,
		Interval:    cfg.Donjon.PollInterval,
		MaxAttempts: cfg.Donjon.MaxPollAttempts,
		Logger:      logger.Component(base, "poller"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}

	pipelineCfg := &Config{
		Remote:      client,
		Poller:      jobPoller,
		Extractor:   extractor.New(client, logger.Component(base, "extractor")),
		Budgeter:    budget.NewBudgeter(logger.Component(base, "budgeter")),
		PollTimeout: cfg.Donjon.PollTimeout,
		Logger:      base,
	}

	if cfg.Catalog.Path != "" {
		monsters, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load monster catalog: %w", err)
		}
		pipelineCfg.Populator = catalog.NewPopulator(monsters, logger.Component(base, "populator"))
		base.Info("Monster catalog loaded",
			slog.String("path", cfg.Catalog.Path),
			slog.Int("creatures", monsters.Len()),
		)
	}

	return New(pipelineCfg)
}

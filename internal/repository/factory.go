package repository

import (
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/repository/badger"
	"github.com/navikt/benchroom/internal/repository/memory"
	"github.com/navikt/benchroom/internal/repository/redis"
)

// NewRepository creates the repository selected by the configuration.
// Redis takes the first slot, then Badger, and the in-memory store is the fallback.
func NewRepository(cfg *config.Config) (Repository, error) {
	switch {
	case cfg.Redis.Enabled:
		logging.Info().Str("backend", "redis").Msg("Initializing repository")
		repo, err := redis.NewRepository(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case cfg.Badger.Enabled:
		logging.Info().Str("backend", "badger").Str("path", cfg.Badger.Path).Msg("Initializing repository")
		repo, err := badger.NewRepository(cfg.Badger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		logging.Info().Str("backend", "memory").Msg("Initializing repository")
		return memory.NewRepository(), nil
	}
}

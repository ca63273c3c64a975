package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/config"
	"github.com/aristath/pricesentry/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// pricesentry.db - tickers and alert history
	mainDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "pricesentry.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameMain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize main database: %w", err)
	}
	container.MainDB = mainDB

	// client_data.db - provider price cache, safe to delete
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	if err != nil {
		mainDB.Close()
		return nil, fmt.Errorf("failed to initialize client data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	for _, db := range []*database.DB{mainDB, clientDataDB} {
		if err := db.Migrate(); err != nil {
			mainDB.Close()
			clientDataDB.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

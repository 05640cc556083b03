package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/config"
	"github.com/aristath/cryptopilot/internal/database"
)

// InitializeDatabases opens the journal database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	journalDB, err := database.New(database.Config{
		Path: cfg.JournalDSN,
		Name: "journal",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal database: %w", err)
	}

	if err := journalDB.Migrate(); err != nil {
		journalDB.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	container.JournalDB = journalDB

	log.Debug().
		Str("profile", string(journalDB.Profile())).
		Msg("Journal database initialized")

	return container, nil
}

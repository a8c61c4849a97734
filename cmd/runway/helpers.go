package main

import (
	"context"
	"fmt"

	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
	"github.com/runwayfin/runway/internal/storage"

	"github.com/spf13/viper"
)

// formatMinor renders integer minor units as a decimal amount string.
func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// loadConfig builds the validated runtime configuration from the viper
// state initialized by the root command.
func loadConfig() (*config.Config, error) {
	return config.LoadFromViper(viper.GetViper())
}

// loadRules reads the name-mapping rules file configured under rules.path.
func loadRules() (*model.NameMappingConfig, error) {
	path := viper.GetString("rules.path")
	if path == "" {
		path = "$HOME/.config/runway/rules.yaml"
	}
	return config.LoadRules(path)
}

// initStorage opens and migrates the ledger store over the configured
// chart.
func initStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/runway/ledger.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath, cfg.Chart)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

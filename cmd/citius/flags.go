package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/config"
	"github.com/Raam977/citius-scraper/internal/log"
	"github.com/Raam977/citius-scraper/internal/model"
)

// addCriteriaFlags registers the flags describing a search.
func addCriteriaFlags(cmd *cobra.Command) {
	cmd.Flags().String("nif", "", "Search by NIF/NIPC (taxpayer number)")
	cmd.Flags().String("designacao", "", "Search by entity designation")
	cmd.Flags().String("data-inicio", "", "Publication date lower bound (YYYY-MM-DD)")
	cmd.Flags().String("data-fim", "", "Publication date upper bound (YYYY-MM-DD)")
	cmd.Flags().String("tribunal", "", "Court filter: nova or extintos")
	cmd.Flags().String("grupo-actos", "", "Act group identifier")
	cmd.Flags().String("acto", "", "Act identifier")
	cmd.Flags().StringP("profile", "p", "", "Use a saved search from the config file")
}

// criteriaFromFlags builds the search criteria. A profile is applied first
// and individual flags override its fields.
func criteriaFromFlags(cmd *cobra.Command, file *config.File) (model.SearchCriteria, error) {
	var criteria model.SearchCriteria

	profile, err := cmd.Flags().GetString("profile")
	if err != nil {
		return criteria, err
	}
	if profile != "" {
		criteria, err = file.Profile(profile)
		if err != nil {
			return criteria, err
		}
	}

	fields := []struct {
		flag   string
		target *string
	}{
		{"nif", &criteria.Identifier},
		{"designacao", &criteria.Name},
		{"data-inicio", &criteria.DateStart},
		{"data-fim", &criteria.DateEnd},
		{"grupo-actos", &criteria.ActGroup},
		{"acto", &criteria.Act},
	}
	for _, f := range fields {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		if *f.target, err = cmd.Flags().GetString(f.flag); err != nil {
			return criteria, err
		}
	}

	// A query flag replaces the profile's query of the other kind.
	if cmd.Flags().Changed("nif") && !cmd.Flags().Changed("designacao") {
		criteria.Name = ""
	}
	if cmd.Flags().Changed("designacao") && !cmd.Flags().Changed("nif") {
		criteria.Identifier = ""
	}

	if cmd.Flags().Changed("tribunal") {
		court, err := cmd.Flags().GetString("tribunal")
		if err != nil {
			return criteria, err
		}
		criteria.Court = model.CourtFilter(court)
	}

	return criteria, nil
}

// loadConfig builds a Config from defaults, the config file and the global
// flags. It also returns the loaded file for profile lookups.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.File, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	file, found, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ConfigFilePath = found
	cfg.Apply(file.Defaults)

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return nil, nil, err
	}
	if cfg.LogFormat, err = cmd.Flags().GetString("log-format"); err != nil {
		return nil, nil, err
	}

	return cfg, file, nil
}

// setupLogger creates the secure logger and makes it the default.
func setupLogger(cfg *config.Config) *slog.Logger {
	logger := log.NewLogger(os.Stderr, cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)
	return logger
}

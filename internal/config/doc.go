// Package config holds the settings of a scraper run and loads the optional
// .citius.yaml file with defaults and saved searches.
//
// Precedence is: command-line flags, then the config file, then the
// Default* constants.
package config

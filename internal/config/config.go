package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/Raam977/citius-scraper/internal/crawler"
	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/report"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "citius"

	// DefaultURL is the insolvency notices search page.
	DefaultURL = fetch.DefaultURL

	// DefaultTimeout bounds one HTTP exchange.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultRunTimeout bounds a whole run. The portal is slow, and a long
	// search with expansion can take several minutes.
	DefaultRunTimeout = 15 * time.Minute

	// DefaultMaxPages is the result page ceiling.
	DefaultMaxPages = crawler.DefaultMaxPages

	// DefaultWorkers is the number of concurrent creditor expansions.
	DefaultWorkers = crawler.DefaultWorkers

	// MaxWorkers is the highest accepted worker count.
	MaxWorkers = 4

	// DefaultMinDelay is the politeness delay between requests.
	DefaultMinDelay = fetch.DefaultMinDelay

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits response bodies.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultFormat is the report printed to stdout. The CSV export is
	// always written to OutputFile.
	DefaultFormat = string(report.FormatText)

	// DefaultOutputFile is where the CSV export goes.
	DefaultOutputFile = report.DefaultCSVFile

	// DefaultLogFormat is the log handler format.
	DefaultLogFormat = "text"
)

// Config holds all options of a run. It is populated from defaults, the
// config file and CLI flags, in that order, and then passed down explicitly.
type Config struct {
	// URL is the search page.
	URL string

	// Timeout bounds each HTTP exchange.
	Timeout time.Duration

	// RunTimeout bounds the whole run. Zero means no limit.
	RunTimeout time.Duration

	// MaxPages is the result page ceiling.
	MaxPages int

	// Workers is the number of concurrent creditor expansions.
	Workers int

	// MinDelay separates consecutive requests.
	MinDelay time.Duration

	// UserAgent is the User-Agent header.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int

	// ExpiredMarkers extend the session-expired page fragments.
	ExpiredMarkers []string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// Format is the report format written to stdout or ReportFile.
	Format string

	// OutputFile is the CSV export path. The full JSON goes next to it.
	OutputFile string

	// ReportFile receives the report instead of stdout when set.
	ReportFile string

	// DebugDir receives a copy of every fetched page when set.
	DebugDir string

	// MetricsFile receives the fetch metrics in Prometheus text format
	// when set.
	MetricsFile string

	// DBDir is the directory of the search history database.
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool

	// ConfigFilePath is the config file location. Empty means search
	// the current directory and then the home directory.
	ConfigFilePath string

	// Criteria is the search to run.
	Criteria model.SearchCriteria
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		URL:         DefaultURL,
		Timeout:     DefaultTimeout,
		RunTimeout:  DefaultRunTimeout,
		MaxPages:    DefaultMaxPages,
		Workers:     DefaultWorkers,
		MinDelay:    DefaultMinDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		LogFormat:   DefaultLogFormat,
		Format:      DefaultFormat,
		OutputFile:  DefaultOutputFile,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the data directory holding the history database.
// On Linux: ~/.local/share/citius
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Apply copies the non-zero settings of a config file onto c.
func (c *Config) Apply(s Settings) {
	if s.URL != "" {
		c.URL = s.URL
	}
	if s.Timeout != 0 {
		c.Timeout = s.Timeout
	}
	if s.RunTimeout != 0 {
		c.RunTimeout = s.RunTimeout
	}
	if s.MaxPages != 0 {
		c.MaxPages = s.MaxPages
	}
	if s.Workers != 0 {
		c.Workers = s.Workers
	}
	if s.MinDelay != 0 {
		c.MinDelay = s.MinDelay
	}
	if s.UserAgent != "" {
		c.UserAgent = s.UserAgent
	}
	if s.Format != "" {
		c.Format = s.Format
	}
	if s.Output != "" {
		c.OutputFile = s.Output
	}
	if s.DebugDir != "" {
		c.DebugDir = s.DebugDir
	}
	if s.DBDir != "" {
		c.DBDir = s.DBDir
	}
	if s.Save {
		c.SaveToDB = true
	}
	if len(s.ExpiredMarkers) > 0 {
		c.ExpiredMarkers = append(c.ExpiredMarkers, s.ExpiredMarkers...)
	}
}

// Validate checks the run settings and returns the first problem found.
// The search criteria are validated separately by the query package.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RunTimeout < 0 {
		return ErrInvalidRunTimeout
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}
	if c.MinDelay < 0 {
		return ErrInvalidMinDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return ErrInvalidFormat
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Raam977/citius-scraper/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".citius.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrProfileNotFound is returned for an unknown saved search.
	ErrProfileNotFound = errors.New("profile not found")
)

// Settings are the run defaults a config file may set.
// Zero values leave the built-in default in place.
type Settings struct {
	URL        string        `yaml:"url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RunTimeout time.Duration `yaml:"run_timeout,omitempty"`
	MaxPages   int           `yaml:"max_pages,omitempty"`
	Workers    int           `yaml:"workers,omitempty"`
	MinDelay   time.Duration `yaml:"min_delay,omitempty"`
	UserAgent  string        `yaml:"user_agent,omitempty"`
	Format     string        `yaml:"format,omitempty"`
	Output     string        `yaml:"output,omitempty"`
	DebugDir   string        `yaml:"debug_dir,omitempty"`
	DBDir      string        `yaml:"db_dir,omitempty"`
	Save       bool          `yaml:"save,omitempty"`

	// ExpiredMarkers are extra page fragments that mean the portal
	// session has expired, for wording the built-in list does not know.
	ExpiredMarkers []string `yaml:"expired_markers,omitempty"`
}

// File is the structure of the .citius.yaml configuration file.
type File struct {
	// Defaults override the built-in run settings.
	Defaults Settings `yaml:"defaults,omitempty"`

	// Profiles are named saved searches, selected with --profile.
	Profiles map[string]model.SearchCriteria `yaml:"profiles,omitempty"`
}

// Profile returns the saved search called name.
func (f *File) Profile(name string) (model.SearchCriteria, error) {
	criteria, ok := f.Profiles[name]
	if !ok {
		return model.SearchCriteria{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return criteria, nil
}

// ProfileNames returns the saved search names in sorted order.
func (f *File) ProfileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfigFile loads a YAML config file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Profiles == nil {
		cf.Profiles = make(map[string]model.SearchCriteria)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .citius.yaml in the current directory
// 3. Look for .citius.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Load finds and loads the config file. A missing file is only an error
// when configPath was given explicitly; otherwise an empty File is returned.
func Load(configPath string) (*File, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return &File{Profiles: make(map[string]model.SearchCriteria)}, "", nil
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		return nil, path, err
	}
	return cf, path, nil
}

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the optional repository-level configuration, read from
// owners.toml at the repository root.
type Config struct {
	// MaxSuggestions caps how many suggested reviewers are requested on the
	// pull request. The full set still appears in the summary comment.
	MaxSuggestions *int `toml:"max_suggestions"`
	// Ignore lists path prefixes whose changes are excluded from review
	// assignment.
	Ignore []string `toml:"ignore"`
	// DeterministicTieBreak picks the lexicographically first of
	// equally-ranked owners instead of a random one.
	DeterministicTieBreak bool `toml:"deterministic_tie_break"`
	// AnyonePlaceholder overrides the name shown when any reviewer would do.
	AnyonePlaceholder string `toml:"anyone_placeholder"`
}

// ReadConfig reads owners.toml from the given directory. A missing file is
// not an error; defaults are returned. On a read or parse error the defaults
// are returned along with the error so the caller can warn and continue.
func ReadConfig(path string) (*Config, error) {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	defaultConfig := &Config{
		MaxSuggestions:        nil,
		Ignore:                []string{},
		DeterministicTieBreak: false,
		AnyonePlaceholder:     "",
	}

	fileName := path + "owners.toml"
	if _, err := os.Stat(fileName); errors.Is(err, os.ErrNotExist) {
		return defaultConfig, nil
	}
	file, err := os.ReadFile(fileName)
	if err != nil {
		return defaultConfig, err
	}
	config := defaultConfig
	err = toml.Unmarshal(file, &config)
	if err != nil {
		return defaultConfig, err
	}
	return config, nil
}

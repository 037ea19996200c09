package chrono

import (
	"bufio"
	"io"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// Config represents the settings of a search.
type Config struct {
	Explorer ExplorerConfig
	Solver   SolverConfig
	Log      LogConfig
}

// ExplorerConfig holds the limits applied to an Explorer.
type ExplorerConfig struct {
	MaxRounds   int
	MaxBranches int
	CheckForks  bool
}

// SolverConfig selects and sizes the solver back end.
type SolverConfig struct {
	Name      string
	CacheSize int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Solver: SolverConfig{
			Name:      "sat",
			CacheSize: 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Configure applies the explorer settings to e.
func (c *Config) Configure(e *Explorer) {
	e.MaxRounds = c.Explorer.MaxRounds
	e.MaxBranches = c.Explorer.MaxBranches
	e.CheckForks = c.Explorer.CheckForks
}

// Validate returns an error if any setting is out of range.
func (c *Config) Validate() error {
	if c.Explorer.MaxRounds < 0 {
		return errors.Errorf("Explorer.MaxRounds must not be negative: %d", c.Explorer.MaxRounds)
	} else if c.Explorer.MaxBranches < 0 {
		return errors.Errorf("Explorer.MaxBranches must not be negative: %d", c.Explorer.MaxBranches)
	} else if c.Solver.CacheSize < 0 {
		return errors.Errorf("Solver.CacheSize must not be negative: %d", c.Solver.CacheSize)
	}
	return nil
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return errors.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadConfig reads a TOML config file. Settings missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	config, err := DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return config, nil
}

// DecodeConfig decodes a TOML config from r on top of the defaults.
func DecodeConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	if err := tomlSettings.NewDecoder(r).Decode(&config); err != nil {
		return Config{}, err
	} else if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// MarshalConfig encodes the config as TOML.
func MarshalConfig(c Config) ([]byte, error) {
	return tomlSettings.Marshal(&c)
}

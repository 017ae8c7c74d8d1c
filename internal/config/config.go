package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/fwessels/glsl-pp/internal/preprocessor"
)

type Config struct {
	// Defines are predefined macros, name to replacement text.
	Defines map[string]string `yaml:"defines"`
	// Extensions the target supports.
	Extensions     []string `yaml:"extensions"`
	DefaultVersion int      `yaml:"defaultVersion"`
	PreserveLines  bool     `yaml:"preserveLines"`
	// IncludeDirs are searched, in order, for #include'd files not found
	// next to the including file.
	IncludeDirs []string `yaml:"includeDirs"`
	// Jobs bounds the number of files processed at once. Zero means one per CPU.
	Jobs int `yaml:"jobs"`
}

func LoadConfig(file string) (Config, error) {
	yfile, err := os.ReadFile(file)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read file %q: %w", file, err)
	}

	var config Config
	err = yaml.Unmarshal(yfile, &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %q: %w", file, err)
	}
	return config, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DefaultVersion < 0 {
		errs = append(errs, fmt.Errorf("defaultVersion must not be negative, got %d", c.DefaultVersion))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	for _, name := range slices.Sorted(maps.Keys(c.Defines)) {
		if err := preprocessor.ValidMacroName(name); err != nil {
			errs = append(errs, fmt.Errorf("defines: %w", err))
		}
	}
	return errors.Join(errs...)
}

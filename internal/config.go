package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/localflix/localflix/internal/api"
	"github.com/localflix/localflix/internal/catalog"
	"github.com/mitchellh/go-homedir"
)

// LocalflixConfig is the struct used to contain the various user config
// supplied by file and/or environment.
type LocalflixConfig struct {
	Library  catalog.Config `yaml:"library"`
	API      api.RestConfig `yaml:"api"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=verbose debug info warning error"`
}

// LoadFromFile populates the config from a YAML file overlaid with the
// environment. The file is optional; when it is absent the environment
// (and tag defaults) alone supply the values.
func (config *LocalflixConfig) LoadFromFile(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, config); err != nil {
			return fmt.Errorf("failed to load configuration from '%s': %w", configPath, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(config); err != nil {
			return fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	} else {
		return fmt.Errorf("failed to read configuration file '%s': %w", configPath, err)
	}

	if err := config.resolveLibraryPath(); err != nil {
		return err
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	return nil
}

// resolveLibraryPath fills in the default library location (~/videos) when
// none is configured and expands a leading '~' on user-supplied paths, which
// the shell won't have done for values sourced from a file.
func (config *LocalflixConfig) resolveLibraryPath() error {
	if config.Library.LibraryPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("failed to derive default library path: %w", err)
		}

		config.Library.LibraryPath = filepath.Join(home, "videos")
		return nil
	}

	expanded, err := homedir.Expand(config.Library.LibraryPath)
	if err != nil {
		return fmt.Errorf("failed to expand library path '%s': %w", config.Library.LibraryPath, err)
	}

	config.Library.LibraryPath = expanded
	return nil
}

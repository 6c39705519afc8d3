package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory or config.yaml file at
// path, then applies environment overrides and validates the result. An empty
// path loads the built-in defaults.
func Load(path string) (*Configuration, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load over an arbitrary filesystem.
func LoadFs(fs afero.Fs, path string) (*Configuration, error) {
	out := defaultConfig()

	if path != "" {
		// If given a directory, look for config.yaml inside it.
		if isDir, err := afero.IsDir(fs, path); err == nil && isDir {
			path = filepath.Join(path, ConfigurationName)
		}

		configContents, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(configContents, out); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	out.configFs = fs

	if err := out.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	return out, nil
}

// Initialize writes the default configuration into dir, leaving an existing
// one in place.
func Initialize(fs afero.Fs, dir string) (string, error) {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ConfigurationName)
	switch exists, err := afero.Exists(fs, path); {
	case err != nil:
		return "", err
	case exists:
		return path, fmt.Errorf("%s already exists", path)
	}

	return path, afero.WriteFile(fs, path, defaultConfigData, 0600)
}

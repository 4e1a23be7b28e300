package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# pypx-dicomweb Configuration File
#
# Serves a pypx DICOM archive over DICOMweb (QIDO-RS and WADO-RS).
#
# Every setting can be overridden from the environment with the
# PYPX_DICOMWEB_ prefix, e.g. PYPX_DICOMWEB_LOGGING_LEVEL=DEBUG.
# The archive and port settings also honour PYPX_LOG_DIR, PYPX_DATA_DIR,
# PYPX_REPACK_DATA_MOUNTPOINT and PORT.

`

// InitConfig writes a configuration file with default values to the default
// location and returns its path.
//
// An existing file is left untouched unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a configuration file with default values to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML below the explanatory header.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.String(), nil
}

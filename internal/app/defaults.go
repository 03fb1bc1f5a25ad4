package app

import (
	"fmt"
	"os"
	"path/filepath"

	"paperlock/internal/config"
)

// Defaults is the on-disk layout used when no config says otherwise.
type Defaults struct {
	ConfigPath  string
	BaseDir     string
	LogDir      string
	BlobDir     string // ciphertext, content-addressed
	ChainDir    string // Badger ledger
	DatabaseDir string // SQLite key pairs and access log
}

// GetDefaults returns the default layout, checking environment variables first.
// Environment variables:
//   - PAPERLOCK_CONFIG_PATH: config file location (default: ~/.config/paperlock.toml)
//   - PAPERLOCK_HOME: base directory for paperlock data (default: ~/.local/share/paperlock)
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, config.LogSubdir),
		BlobDir:     filepath.Join(baseDir, config.BlobSubdir),
		ChainDir:    filepath.Join(baseDir, config.ChainSubdir),
		DatabaseDir: filepath.Join(baseDir, config.DatabaseSubdir),
	}, nil
}

// NewConfig returns a config whose stores live in the default layout.
func (d *Defaults) NewConfig() *config.Config {
	return config.NewConfig(d.BaseDir)
}

func getConfigPath() (string, error) {
	if path := os.Getenv("PAPERLOCK_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "paperlock.toml"), nil
}

// getBaseDir falls back to the XDG data directory.
func getBaseDir() (string, error) {
	if path := os.Getenv("PAPERLOCK_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "paperlock"), nil
}

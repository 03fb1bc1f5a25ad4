package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default values applied by NewConfig.
const (
	DefaultKDFIterations    = 600_000
	MinKDFIterations        = 100_000
	DefaultWorkers          = 4
	DefaultBlobFetchSeconds = 30
)

// Subdirectories of BaseDir in the default layout.
const (
	LogSubdir      = "log"
	BlobSubdir     = "blobs"
	ChainSubdir    = "chain"
	DatabaseSubdir = "db"
)

// Config represents the main configuration for paperlock.
type Config struct {
	BaseDir   string          `toml:"base_dir"`
	LogDir    string          `toml:"log_dir"`
	BlobStore BlobStoreConfig `toml:"blob_store"`
	Chain     ChainConfig     `toml:"chain"`
	Database  DatabaseConfig  `toml:"database"`
	Crypto    CryptoConfig    `toml:"crypto"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
}

// BlobStoreConfig represents configuration for the ciphertext store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobStoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // MinIO and other S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`
}

// ChainConfig represents configuration for the ledger's chain runtime.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ChainConfig struct {
	Type     string `toml:"type"`                // "memory" or "badger"
	DataDir  string `toml:"data_dir,omitempty"`  // only used for type=badger
	InMemory bool   `toml:"in_memory,omitempty"` // badger without a directory
}

// DatabaseConfig represents configuration for the key and audit database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CryptoConfig holds key-derivation and worker settings.
// KDFIterations is fixed per deployment: wrapped keys do not record it.
type CryptoConfig struct {
	KDFIterations int `toml:"kdf_iterations"`
	Workers       int `toml:"workers"` // max concurrent KDF and cipher jobs
}

// TimeoutsConfig bounds calls to external stores.
type TimeoutsConfig struct {
	BlobFetchSeconds int `toml:"blob_fetch_seconds"`
}

// NewConfig creates a new Config rooted at baseDir with on-disk defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, LogSubdir),
		BlobStore: BlobStoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, BlobSubdir),
		},
		Chain: ChainConfig{
			Type:    "badger",
			DataDir: filepath.Join(baseDir, ChainSubdir),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, DatabaseSubdir),
		},
		Crypto: CryptoConfig{
			KDFIterations: DefaultKDFIterations,
			Workers:       DefaultWorkers,
		},
		Timeouts: TimeoutsConfig{
			BlobFetchSeconds: DefaultBlobFetchSeconds,
		},
	}
}

// Validate checks the config for values the components would reject later.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.BlobStore.Type {
	case "memory":
	case "filesystem":
		if c.BlobStore.FSRoot == "" {
			errs = append(errs, errors.New("blob_store: fs_root is required for type filesystem"))
		}
	case "s3":
		if c.BlobStore.S3Bucket == "" {
			errs = append(errs, errors.New("blob_store: s3_bucket is required for type s3"))
		}
		if (c.BlobStore.S3AccessKeyID == "") != (c.BlobStore.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("blob_store: s3_access_key_id and s3_secret_access_key must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob_store: unknown type %q", c.BlobStore.Type))
	}

	switch c.Chain.Type {
	case "memory":
	case "badger":
		if c.Chain.DataDir == "" && !c.Chain.InMemory {
			errs = append(errs, errors.New("chain: data_dir or in_memory is required for type badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("chain: unknown type %q", c.Chain.Type))
	}

	switch c.Database.Type {
	case "memory":
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database: data_dir is required for type sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database: unknown type %q", c.Database.Type))
	}

	if c.Crypto.KDFIterations != 0 && c.Crypto.KDFIterations < MinKDFIterations {
		errs = append(errs, fmt.Errorf("crypto: kdf_iterations must be at least %d", MinKDFIterations))
	}
	if c.Crypto.Workers < 0 {
		errs = append(errs, errors.New("crypto: workers must not be negative"))
	}
	if c.Timeouts.BlobFetchSeconds < 0 {
		errs = append(errs, errors.New("timeouts: blob_fetch_seconds must not be negative"))
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold S3 credentials, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

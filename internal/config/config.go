// Package config implements TOML configuration loading with environment
// overrides for evidencedrive. Resolution order is defaults -> config file ->
// environment; CLI flags override individual values at the command layer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	// Enabled gates the whole publishing pipeline. When false, upload and
	// publish commands refuse to enqueue work.
	Enabled bool `toml:"enabled"`

	OAuth    OAuthConfig    `toml:"oauth"`
	Drive    DriveConfig    `toml:"drive"`
	Uploads  UploadsConfig  `toml:"uploads"`
	Queue    QueueConfig    `toml:"queue"`
	Progress ProgressConfig `toml:"progress"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Logging  LoggingConfig  `toml:"logging"`
}

// OAuthConfig holds the OAuth client credentials and token persistence path.
// Either the client id/secret pair or a service account file must be set.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	// CredentialFile is where the refresh token and cached access token are
	// persisted between runs.
	CredentialFile string `toml:"credential_file"`
	// RefreshToken seeds the credential file on first use. Normally obtained
	// once via the login command; accepted here so deployments can inject it
	// through the environment.
	RefreshToken string `toml:"refresh_token"`
	// ServiceAccountFile, when set, switches authentication to a service
	// account key file. Subject is the account to impersonate.
	ServiceAccountFile string `toml:"service_account_file"`
	Subject            string `toml:"subject"`
}

// DriveConfig describes the remote store layout.
type DriveConfig struct {
	// SharedDriveID scopes all operations to a shared drive when non-empty.
	SharedDriveID string `toml:"shared_drive_id"`
	// RootFolderName is the display name of the top-level folder that holds
	// the whole evidence taxonomy.
	RootFolderName string `toml:"root_folder_name"`
}

// UploadsConfig controls staging and per-file constraints. Size and MIME
// constraints are enforced by the intake layer before files reach the
// pipeline; they are configured here so both sides read one source of truth.
type UploadsConfig struct {
	StagingDir       string   `toml:"staging_dir"`
	MaxFileSize      int64    `toml:"max_file_size"`
	AllowedMimeTypes []string `toml:"allowed_mime_types"`
	// Locale selects the language for month folder labels, e.g. "id" or "en".
	Locale string `toml:"locale"`
}

// QueueConfig configures the asynq dispatch queue.
type QueueConfig struct {
	RedisAddr   string `toml:"redis_addr"`
	Concurrency int    `toml:"concurrency"`
	// MaxRetry is the scheduler-level retry budget for a failed unit. The
	// pipeline itself never retries; re-enqueueing the whole unit is the
	// queue's policy.
	MaxRetry int `toml:"max_retry"`
}

// ProgressConfig configures the realtime progress event surface.
type ProgressConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// LedgerConfig configures the local publication record database.
type LedgerConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json, auto
}

// Defaults that apply before the config file and environment are read.
const (
	defaultRootFolderName = "Evidence Archive"
	defaultLocale         = "en"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultConcurrency    = 4
	defaultMaxRetry       = 5
	defaultListenAddr     = "127.0.0.1:8571"
	defaultMaxFileSize    = 10 << 20 // 10 MiB
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// defaultAllowedMimeTypes covers the evidence formats the intake layer admits.
var defaultAllowedMimeTypes = []string{
	"image/jpeg", "image/png", "image/webp", "application/pdf",
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Enabled: true,
		Drive: DriveConfig{
			RootFolderName: defaultRootFolderName,
		},
		Uploads: UploadsConfig{
			StagingDir:       filepath.Join(userDataDir(), "staging"),
			MaxFileSize:      defaultMaxFileSize,
			AllowedMimeTypes: defaultAllowedMimeTypes,
			Locale:           defaultLocale,
		},
		OAuth: OAuthConfig{
			CredentialFile: filepath.Join(userDataDir(), "credential.json"),
		},
		Queue: QueueConfig{
			RedisAddr:   defaultRedisAddr,
			Concurrency: defaultConcurrency,
			MaxRetry:    defaultMaxRetry,
		},
		Progress: ProgressConfig{
			ListenAddr: defaultListenAddr,
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(userDataDir(), "ledger.db"),
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// userDataDir returns the per-user data directory for evidencedrive.
func userDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "evidencedrive")
}

// Load resolves the effective configuration: defaults, then the TOML file at
// path (missing file is not an error when path came from the default
// location), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(userDataDir(), "config.toml")
	}

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return nil, fmt.Errorf("config: file %s does not exist", path)
		}
	case err != nil:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		if decErr := toml.Unmarshal(data, cfg); decErr != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, decErr)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside a unit of work.
func (c *Config) Validate() error {
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: queue concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}

	if c.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive, got %d", c.Uploads.MaxFileSize)
	}

	switch c.Logging.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}

	return nil
}

// HasOAuthClient reports whether interactive OAuth credentials are configured.
func (c *Config) HasOAuthClient() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != ""
}

// HasServiceAccount reports whether service account authentication is configured.
func (c *Config) HasServiceAccount() bool {
	return c.OAuth.ServiceAccountFile != ""
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "Evidence Archive", cfg.Drive.RootFolderName)
	assert.Equal(t, "en", cfg.Uploads.Locale)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.NotEmpty(t, cfg.OAuth.CredentialFile)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
enabled = true

[oauth]
client_id = "client-123"
client_secret = "secret-456"

[drive]
root_folder_name = "Internship Evidence"
shared_drive_id = "0AbcSharedDrive"

[uploads]
locale = "id"
max_file_size = 5242880

[queue]
redis_addr = "redis.internal:6379"
concurrency = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "client-123", cfg.OAuth.ClientID)
	assert.Equal(t, "Internship Evidence", cfg.Drive.RootFolderName)
	assert.Equal(t, "0AbcSharedDrive", cfg.Drive.SharedDriveID)
	assert.Equal(t, "id", cfg.Uploads.Locale)
	assert.Equal(t, int64(5242880), cfg.Uploads.MaxFileSize)
	assert.Equal(t, 8, cfg.Queue.Concurrency)
	assert.True(t, cfg.HasOAuthClient())
	assert.False(t, cfg.HasServiceAccount())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[oauth]\nclient_id = \"from-file\"\n"), 0o644))

	t.Setenv(EnvClientID, "from-env")
	t.Setenv(EnvConcurrency, "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.OAuth.ClientID)
	assert.Equal(t, 12, cfg.Queue.Concurrency)
}

func TestApplyEnvOverrides_ListAndBool(t *testing.T) {
	cfg := Default()

	t.Setenv(EnvEnabled, "false")
	t.Setenv(EnvAllowedMimeTypes, "image/png, application/pdf")

	ApplyEnvOverrides(cfg)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, []string{"image/png", "application/pdf"}, cfg.Uploads.AllowedMimeTypes)
}

func TestApplyEnvOverrides_EmptyValueIgnored(t *testing.T) {
	cfg := Default()
	cfg.OAuth.ClientID = "keep-me"

	t.Setenv(EnvClientID, "")

	ApplyEnvOverrides(cfg)

	assert.Equal(t, "keep-me", cfg.OAuth.ClientID)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Queue.Concurrency = 0 }},
		{"negative max size", func(c *Config) { c.Uploads.MaxFileSize = -1 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names. Every value that deployments commonly inject
// (credentials, endpoints) has an override; layout knobs stay file-only.
const (
	EnvConfig             = "EVIDENCEDRIVE_CONFIG"
	EnvEnabled            = "EVIDENCEDRIVE_ENABLED"
	EnvClientID           = "EVIDENCEDRIVE_CLIENT_ID"
	EnvClientSecret       = "EVIDENCEDRIVE_CLIENT_SECRET"
	EnvRefreshToken       = "EVIDENCEDRIVE_REFRESH_TOKEN"
	EnvCredentialFile     = "EVIDENCEDRIVE_CREDENTIAL_FILE"
	EnvServiceAccountFile = "EVIDENCEDRIVE_SERVICE_ACCOUNT_FILE"
	EnvSubject            = "EVIDENCEDRIVE_SUBJECT"
	EnvSharedDriveID      = "EVIDENCEDRIVE_SHARED_DRIVE_ID"
	EnvRootFolderName     = "EVIDENCEDRIVE_ROOT_FOLDER"
	EnvStagingDir         = "EVIDENCEDRIVE_STAGING_DIR"
	EnvMaxFileSize        = "EVIDENCEDRIVE_MAX_FILE_BYTES"
	EnvAllowedMimeTypes   = "EVIDENCEDRIVE_ALLOWED_TYPES"
	EnvLocale             = "EVIDENCEDRIVE_LOCALE"
	EnvRedisAddr          = "EVIDENCEDRIVE_REDIS_ADDR"
	EnvConcurrency        = "EVIDENCEDRIVE_WORKERS"
	EnvListenAddr         = "EVIDENCEDRIVE_PROGRESS_ADDR"
	EnvLedgerPath         = "EVIDENCEDRIVE_LEDGER_PATH"
)

// ApplyEnvOverrides mutates cfg with any values found in the environment.
// Unset and empty variables leave the existing value in place.
func ApplyEnvOverrides(cfg *Config) {
	setBool(EnvEnabled, &cfg.Enabled)
	setString(EnvClientID, &cfg.OAuth.ClientID)
	setString(EnvClientSecret, &cfg.OAuth.ClientSecret)
	setString(EnvRefreshToken, &cfg.OAuth.RefreshToken)
	setString(EnvCredentialFile, &cfg.OAuth.CredentialFile)
	setString(EnvServiceAccountFile, &cfg.OAuth.ServiceAccountFile)
	setString(EnvSubject, &cfg.OAuth.Subject)
	setString(EnvSharedDriveID, &cfg.Drive.SharedDriveID)
	setString(EnvRootFolderName, &cfg.Drive.RootFolderName)
	setString(EnvStagingDir, &cfg.Uploads.StagingDir)
	setInt64(EnvMaxFileSize, &cfg.Uploads.MaxFileSize)
	setList(EnvAllowedMimeTypes, &cfg.Uploads.AllowedMimeTypes)
	setString(EnvLocale, &cfg.Uploads.Locale)
	setString(EnvRedisAddr, &cfg.Queue.RedisAddr)
	setInt(EnvConcurrency, &cfg.Queue.Concurrency)
	setString(EnvListenAddr, &cfg.Progress.ListenAddr)
	setString(EnvLedgerPath, &cfg.Ledger.Path)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt64(key string, dst *int64) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setList(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}

	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	*dst = parts
}

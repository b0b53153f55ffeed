package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// filePerms restricts credential files to owner-only read/write.
const filePerms = 0o600

// dirPerms is used when creating the credential directory.
const dirPerms = 0o700

// Credential is the broker's persistent state: the long-lived refresh token
// plus a cached access token. The access token is a cache only — losing it
// costs one extra refresh exchange; losing the refresh token requires a new
// authorization grant, which is why it must never be dropped.
type Credential struct {
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Valid reports whether the cached access token can still be used. A small
// margin avoids presenting a token that expires mid-request.
func (c *Credential) Valid(now time.Time) bool {
	const expiryMargin = 30 * time.Second

	if c == nil || c.AccessToken == "" {
		return false
	}

	if c.Expiry.IsZero() {
		return false
	}

	return c.Expiry.After(now.Add(expiryMargin))
}

// loadCredential reads a saved credential from disk.
// Returns (nil, nil) if the file does not exist.
func loadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading %s: %w", path, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("auth: decoding %s: %w", path, err)
	}

	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("auth: %s has no refresh token (re-authorization required)", path)
	}

	return &cred, nil
}

// saveCredential writes a credential to disk atomically (write-to-temp +
// rename) with 0600 permissions. Never logs token values.
func saveCredential(path string, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encoding credential: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, dirPerms); mkErr != nil {
		return fmt.Errorf("auth: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("auth: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: writing credential: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: syncing credential: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: closing credential: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("auth: renaming credential: %w", err)
	}

	success = true

	return nil
}

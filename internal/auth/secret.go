// internal/auth/secret.go
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "tablecrawl"
	// FallbackDir is the directory for file-based secret storage (when keyring fails)
	FallbackDir = ".tablecrawl/secrets"
	// SecretEnvVar overrides any stored secret.
	SecretEnvVar = "TABLECRAWL_TOTP_SECRET"
	// DefaultAccount names the secret written by bootstrap.
	DefaultAccount = "default"
)

// ErrSecretNotFound is returned when no TOTP secret is stored.
var ErrSecretNotFound = errors.New("no TOTP secret stored")

// fileBasedStorageCache memoizes the keyring probe.
var fileBasedStorageCache *bool

// useFileBasedStorage checks if we should use file-based storage.
// Codespaces and CI have no usable keyring.
func useFileBasedStorage() bool {
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := err != nil
	fileBasedStorageCache = &result

	if !result {
		keyring.Delete(KeyringService, testKey)
	}
	return result
}

func secretPath(account string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, account), nil
}

// SaveSecret stores a TOTP secret in the OS keyring or the fallback file.
func SaveSecret(account, secret string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	secret = NormalizeSecret(secret)
	if secret == "" {
		return fmt.Errorf("%w: empty secret", ErrMissingSecret)
	}

	if useFileBasedStorage() {
		path, err := secretPath(account)
		if err != nil {
			return fmt.Errorf("failed to get secret path: %w", err)
		}
		if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
			return fmt.Errorf("failed to save secret file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, account, secret); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// LoadSecret returns the secret for account. The SecretEnvVar environment
// variable takes precedence over anything stored.
func LoadSecret(account string) (string, error) {
	if v := os.Getenv(SecretEnvVar); v != "" {
		return NormalizeSecret(v), nil
	}

	if useFileBasedStorage() {
		path, err := secretPath(account)
		if err != nil {
			return "", fmt.Errorf("failed to get secret path: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", ErrSecretNotFound
			}
			return "", fmt.Errorf("failed to load secret file: %w", err)
		}
		return NormalizeSecret(string(data)), nil
	}

	secret, err := keyring.Get(KeyringService, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return NormalizeSecret(secret), nil
}

// DeleteSecret removes a stored secret. A missing secret is not an error.
func DeleteSecret(account string) error {
	if useFileBasedStorage() {
		path, err := secretPath(account)
		if err != nil {
			return fmt.Errorf("failed to get secret path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete secret file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// NormalizeSecret strips whitespace and padding and upper-cases a base32 secret.
func NormalizeSecret(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	return strings.TrimRight(s, "=")
}

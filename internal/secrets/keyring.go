// Package secrets reads API credentials from the OS keychain.
package secrets

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the service's secrets in the OS keychain.
const KeyringService = "jobmate-etl"

// AdzunaAppKey returns the app key stored for appID.
func AdzunaAppKey(appID string) (string, error) {
	if strings.TrimSpace(appID) == "" {
		return "", errors.New("keyring account name is empty")
	}
	key, err := keyring.Get(KeyringService, appID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("adzuna app key not found in keychain")
	}
	return key, nil
}

// SetAdzunaAppKey stores key for appID.
func SetAdzunaAppKey(appID, key string) error {
	if strings.TrimSpace(appID) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("app key is empty")
	}
	return keyring.Set(KeyringService, appID, key)
}

// DeleteAdzunaAppKey removes the stored key for appID.
func DeleteAdzunaAppKey(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, appID)
}

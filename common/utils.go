// Package common provides shared constants, types, and utilities
// used across the AWS VPN client CLI.
package common

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the path to the per-user application directory.
// It creates the directory if it doesn't exist.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", WrapError(err, "failed to resolve user config directory")
	}

	configDir := filepath.Join(base, ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}

	return configDir, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsRegularFile checks if the path exists and refers to a regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

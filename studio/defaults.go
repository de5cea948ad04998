// Package studio holds the application-wide defaults shared by the
// configuration layer and the binaries.
package studio

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName   = "video-studio"
	DefaultEnvPrefix = "STUDIO"

	DefaultServerAddr     = ":8080"
	DefaultBackendProfile = "runway-gen4"
	DefaultResolution     = "1920x1080"
	DefaultMaxInputLength = 500

	WelcomeMessage = "Welcome to AI Video Studio! I can help you create amazing videos. " +
		"Just describe what you want to see and I'll generate it for you. " +
		"You can also edit and enhance your videos with simple prompts."
)

var (
	DefaultConfigPath   = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultDataDir      = filepath.Join(userDataDir(), DefaultAppName)
	DefaultDatabasePath = filepath.Join(DefaultDataDir, "messages.db")
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func userDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

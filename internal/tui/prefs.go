package tui

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/redactyl/scout/internal/redact"
)

// Prefs holds user preferences for the TUI that persist across sessions.
type Prefs struct {
	// HideSamples masks even the redacted samples, for screen sharing.
	HideSamples bool `json:"hide_samples"`
}

func DefaultPrefs() Prefs {
	return Prefs{}
}

func prefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".scout", "tui_prefs.json"), nil
}

// LoadPrefs loads user preferences from disk, returning defaults if not found.
func LoadPrefs() Prefs {
	prefs := DefaultPrefs()
	path, err := prefsPath()
	if err != nil {
		return prefs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs
	}
	_ = json.Unmarshal(data, &prefs) //nolint:errcheck // fall back to defaults
	return prefs
}

// SavePrefs persists user preferences to disk.
func SavePrefs(prefs Prefs) error {
	path, err := prefsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func maskSample(s string) string {
	if s == "" {
		return ""
	}
	return redact.Masked
}

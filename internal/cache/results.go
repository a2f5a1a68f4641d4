package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/redactyl/scout/internal/types"
)

func resultsPath(root string) string {
	gitDir := filepath.Join(root, ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return filepath.Join(gitDir, "scout_last_scan.json")
	}
	return filepath.Join(root, ".scout_last_scan.json")
}

// SaveResults stores the last scan result so the viewer can reopen it.
func SaveResults(root string, res *types.ScanResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(resultsPath(root), b, 0o644)
}

// LoadResults loads the last scan result saved for root.
func LoadResults(root string) (*types.ScanResult, error) {
	b, err := os.ReadFile(resultsPath(root))
	if err != nil {
		return nil, err
	}
	var res types.ScanResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

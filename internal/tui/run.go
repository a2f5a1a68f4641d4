package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/scout/internal/types"
)

// Run shows res in the full-screen viewer until the user quits.
func Run(res *types.ScanResult, opts Options) error {
	m := NewModel(res, opts)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/scout/internal/audit"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/types"
)

type historyMsg []audit.ScanRecord

func status(format string, args ...any) tea.Cmd {
	s := fmt.Sprintf(format, args...)
	return func() tea.Msg { return statusMsg(s) }
}

// addToBaseline accepts the selected finding and rewrites the baseline file.
func (m *Model) addToBaseline() tea.Cmd {
	f := m.selected()
	if f == nil {
		return status("No finding selected")
	}
	if m.opts.BaselinePath == "" {
		return status("No baseline file configured")
	}
	if m.baseline.Contains(*f) {
		return status("Already baselined")
	}
	next := m.baseline.With(*f)
	if err := next.Write(m.opts.BaselinePath); err != nil {
		return status("Error writing baseline: %v", err)
	}
	m.baseline = next
	m.rebuildRows()
	return status("Added %s to %s", f.Location(), m.opts.BaselinePath)
}

func (m Model) copyPath() tea.Cmd {
	f := m.selected()
	if f == nil {
		return status("No finding selected")
	}
	if err := clipboard.WriteAll(f.Path); err != nil {
		return status("Clipboard error: %v", err)
	}
	return status("Copied: %s", f.Path)
}

// copyFinding copies the finding as JSON. The sample is already redacted.
func (m Model) copyFinding() tea.Cmd {
	f := m.selected()
	if f == nil {
		return status("No finding selected")
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return status("Encode error: %v", err)
	}
	if err := clipboard.WriteAll(string(b)); err != nil {
		return status("Clipboard error: %v", err)
	}
	return status("Copied finding details to clipboard")
}

// visibleResult is the current result restricted to the rows on screen.
func (m *Model) visibleResult() *types.ScanResult {
	out := *m.result
	out.Findings = make([]types.Finding, 0, len(m.display))
	for _, idx := range m.display {
		out.Findings = append(out.Findings, m.findings[idx])
	}
	return &out
}

// export writes the visible findings to scout-export.<format> in the
// working directory.
func (m *Model) export(format string) tea.Cmd {
	if len(m.display) == 0 {
		return status("Nothing to export")
	}
	name := "scout-export." + format
	fh, err := os.Create(name)
	if err != nil {
		return status("Export error: %v", err)
	}
	res := m.visibleResult()
	if format == "sarif" {
		err = report.WriteSARIF(fh, res, m.opts.Version)
	} else {
		err = report.WriteJSON(fh, res)
	}
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return status("Export error: %v", err)
	}
	abs, _ := filepath.Abs(name)
	return status("Exported %d findings to %s", len(res.Findings), abs)
}

func (m Model) loadHistory() tea.Cmd {
	if m.opts.AuditRoot == "" {
		return status("Scan history not available")
	}
	root := m.opts.AuditRoot
	return func() tea.Msg {
		history, err := audit.NewAuditLog(root).LoadHistory()
		if err != nil {
			return statusMsg(fmt.Sprintf("History error: %v", err))
		}
		return historyMsg(history)
	}
}

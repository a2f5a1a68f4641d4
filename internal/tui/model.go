package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/redactyl/scout/internal/audit"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/types"
)

var (
	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	headerStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("237"))

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(1, 4)

	sevCritStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	sevHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sevMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// severityText returns plain text for severity (ANSI codes break table truncation).
func severityText(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "CRIT"
	case types.SevHigh:
		return "HIGH"
	case types.SevMed:
		return "MED"
	case types.SevLow:
		return "LOW"
	default:
		return string(s)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Sort columns, cycled with "s".
const (
	SortDefault  = ""
	SortSeverity = "severity"
	SortPath     = "path"
	SortRule     = "rule"
)

// Options wire the viewer to the rest of the CLI.
type Options struct {
	Baseline report.Baseline
	// BaselinePath is where "b" writes; empty disables baselining.
	BaselinePath string
	// Rescan reruns the scan; nil disables "r".
	Rescan func() (*types.ScanResult, error)
	// Cached marks a result loaded from disk.
	Cached bool
	// AuditRoot locates the scan history; empty disables "a".
	AuditRoot string
	Version   string
}

// Model is the state of the results viewer.
type Model struct {
	table    table.Model
	viewport viewport.Model
	spinner  spinner.Model
	search   textinput.Model

	result   *types.ScanResult
	findings []types.Finding
	// display maps table rows to indices in findings.
	display  []int
	baseline report.Baseline
	opts     Options
	prefs    Prefs

	searchMode     bool
	searchQuery    string
	severityFilter types.Severity
	sortColumn     string
	sortReverse    bool

	showHelp    bool
	showHistory bool
	history     []audit.ScanRecord
	historyIdx  int

	scanning bool
	ready    bool
	quitting bool
	width    int
	height   int
	status   string
}

type statusMsg string

type resultMsg struct {
	res *types.ScanResult
	err error
}

// NewModel builds a viewer over res.
func NewModel(res *types.ScanResult, opts Options) Model {
	if res == nil {
		res = &types.ScanResult{}
	}
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("15")).
		Bold(true).
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color("208")).
		Bold(true)
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	t.SetStyles(s)

	// Line spinner avoids Braille characters that render poorly on some terminals
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	ti := textinput.New()
	ti.Placeholder = "Search path, rule, target or sample..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	base := opts.Baseline
	if base.Items == nil {
		base = report.NewBaseline(nil)
	}
	m := Model{
		table:    t,
		viewport: viewport.New(80, 10),
		spinner:  sp,
		search:   ti,
		baseline: base,
		opts:     opts,
		prefs:    LoadPrefs(),
	}
	m.setResult(res)
	if len(m.findings) == 0 {
		m.status = "q: quit | r: rescan | a: history"
	} else {
		m.status = "q: quit | ?: help | j/k: navigate | /: search | b: baseline | y: copy"
	}
	return m
}

func (m *Model) setResult(res *types.ScanResult) {
	m.result = res
	m.findings = res.Findings
	m.applyFilters()
}

func columns(width int) []table.Column {
	loc := width - 8 - 24 - 28 - 10
	if loc < 20 {
		loc = 20
	}
	return []table.Column{
		{Title: "Sev", Width: 8},
		{Title: "Rule", Width: 24},
		{Title: "Location", Width: loc},
		{Title: "Sample", Width: 28},
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) rescan() tea.Cmd {
	fn := m.opts.Rescan
	return func() tea.Msg {
		if fn == nil {
			return statusMsg("Rescan not available")
		}
		res, err := fn()
		return resultMsg{res: res, err: err}
	}
}

// applyFilters recomputes the visible rows from the search query, the
// severity filter and the sort column.
func (m *Model) applyFilters() {
	query := strings.ToLower(m.searchQuery)
	m.display = m.display[:0]
	for i, f := range m.findings {
		if m.severityFilter != "" && f.Severity != m.severityFilter {
			continue
		}
		if query != "" && !matchesQuery(f, query) {
			continue
		}
		m.display = append(m.display, i)
	}
	m.sortDisplay()
	m.rebuildRows()
}

func matchesQuery(f types.Finding, q string) bool {
	for _, s := range []string{f.Path, f.RuleID, f.Target, f.Sample, f.Description, f.KeyPath} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func (m *Model) sortDisplay() {
	less := func(a, b types.Finding) bool { return false }
	switch m.sortColumn {
	case SortSeverity:
		less = func(a, b types.Finding) bool { return a.Severity.Rank() > b.Severity.Rank() }
	case SortPath:
		less = func(a, b types.Finding) bool { return a.Location() < b.Location() }
	case SortRule:
		less = func(a, b types.Finding) bool { return a.RuleID < b.RuleID }
	}
	sort.SliceStable(m.display, func(i, j int) bool {
		a, b := m.findings[m.display[i]], m.findings[m.display[j]]
		if m.sortReverse {
			return less(b, a)
		}
		return less(a, b)
	})
}

func (m *Model) cycleSort() {
	switch m.sortColumn {
	case SortDefault:
		m.sortColumn = SortSeverity
	case SortSeverity:
		m.sortColumn = SortPath
	case SortPath:
		m.sortColumn = SortRule
	default:
		m.sortColumn = SortDefault
	}
	m.applyFilters()
}

func (m *Model) sample(f types.Finding) string {
	if m.prefs.HideSamples {
		return maskSample(f.Sample)
	}
	return f.Sample
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.display))
	for i, idx := range m.display {
		f := m.findings[idx]
		sev := severityText(f.Severity)
		if m.baseline.Contains(f) {
			sev = "(b) " + sev
		}
		loc := f.Location()
		if f.Target != "" && len(m.result.Targets) > 1 {
			loc = f.Target + ": " + loc
		}
		rows[i] = table.Row{sev, f.RuleID, loc, m.sample(f)}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(0)
	}
	m.updateDetail()
}

func (m *Model) selected() *types.Finding {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.display) {
		return nil
	}
	f := m.findings[m.display[c]]
	return &f
}

func (m *Model) updateDetail() {
	f := m.selected()
	if f == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderDetail(*f))
}

func (m *Model) renderDetail(f types.Finding) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Finding Details") + "\n\n")
	if m.baseline.Contains(f) {
		b.WriteString(dimStyle.Italic(true).Render("BASELINED: accepted in "+m.opts.BaselinePath) + "\n\n")
	}
	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s %s\n", keyStyle.Render(k), v)
		}
	}
	field("Target:", f.Target)
	field("Path:", f.Path)
	if f.Line > 0 {
		field("Line:", fmt.Sprintf("%d", f.Line))
	}
	field("Key:", f.KeyPath)
	field("Rule:", f.RuleID)
	field("Kind:", string(f.Kind))
	field("Severity:", string(f.Severity))
	field("Description:", f.Description)
	field("Sample:", m.sample(f))
	field("Match hash:", f.MatchHash)

	shown := f
	shown.Sample = m.sample(f)
	if raw, err := json.MarshalIndent(shown, "", "  "); err == nil {
		b.WriteString("\n" + keyStyle.Render("JSON:") + "\n")
		b.WriteString(highlight(string(raw), "json"))
	}
	return b.String()
}

// highlight colors code with the chroma lexer registered under lang,
// falling back to the plain text.
func highlight(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, it); err != nil {
		return code
	}
	return buf.String()
}

func (m *Model) layout() {
	// header + status line + two pane borders each
	avail := m.height - 2 - 4
	if avail < 6 {
		avail = 6
	}
	tableH := avail / 2
	m.table.SetColumns(columns(m.width - 2))
	m.table.SetHeight(tableH)
	m.table.SetWidth(m.width - 2)
	m.viewport.Width = m.width - 2
	m.viewport.Height = avail - tableH
	m.updateDetail()
}

func (m *Model) setSeverityFilter(s types.Severity) {
	if m.severityFilter == s {
		m.severityFilter = ""
		m.status = "Severity filter cleared"
	} else {
		m.severityFilter = s
		m.status = fmt.Sprintf("Showing %s only (Esc to clear)", severityText(s))
	}
	m.applyFilters()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case resultMsg:
		m.scanning = false
		if msg.err != nil && msg.res == nil {
			m.status = fmt.Sprintf("Scan error: %v", msg.err)
			return m, nil
		}
		m.opts.Cached = false
		m.setResult(msg.res)
		m.status = fmt.Sprintf("Rescan finished: %d findings", len(msg.res.Findings))
		if msg.err != nil {
			m.status = fmt.Sprintf("Scan incomplete: %v", msg.err)
		}
		return m, nil

	case historyMsg:
		m.history = msg
		m.historyIdx = 0
		m.showHistory = true
		return m, nil

	case spinner.TickMsg:
		if m.scanning {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.showHistory {
		switch msg.String() {
		case "q", "esc", "a":
			m.showHistory = false
		case "up", "k":
			if m.historyIdx > 0 {
				m.historyIdx--
			}
		case "down", "j":
			if m.historyIdx < len(m.history)-1 {
				m.historyIdx++
			}
		}
		return m, nil
	}
	if m.searchMode {
		switch msg.String() {
		case "enter":
			m.searchMode = false
			m.search.Blur()
		case "esc":
			m.searchMode = false
			m.search.Blur()
			m.search.SetValue("")
			m.searchQuery = ""
			m.applyFilters()
		default:
			m.search, cmd = m.search.Update(msg)
			m.searchQuery = m.search.Value()
			m.applyFilters()
			return m, cmd
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "/":
		m.searchMode = true
		m.search.SetValue(m.searchQuery)
		m.search.Focus()
		return m, textinput.Blink
	case "0":
		m.setSeverityFilter(types.SevCritical)
		return m, nil
	case "1":
		m.setSeverityFilter(types.SevHigh)
		return m, nil
	case "2":
		m.setSeverityFilter(types.SevMed)
		return m, nil
	case "3":
		m.setSeverityFilter(types.SevLow)
		return m, nil
	case "esc":
		if m.searchQuery != "" || m.severityFilter != "" {
			m.searchQuery = ""
			m.search.SetValue("")
			m.severityFilter = ""
			m.applyFilters()
			m.status = "Filters cleared"
		}
		return m, nil
	case "s":
		m.cycleSort()
		return m, nil
	case "S":
		m.sortReverse = !m.sortReverse
		m.applyFilters()
		return m, nil
	case "h":
		m.prefs.HideSamples = !m.prefs.HideSamples
		m.rebuildRows()
		if err := SavePrefs(m.prefs); err != nil {
			m.status = fmt.Sprintf("Could not save preferences: %v", err)
		}
		return m, nil
	case "r":
		if m.opts.Rescan == nil {
			m.status = "Rescan not available"
			return m, nil
		}
		m.scanning = true
		return m, tea.Batch(m.spinner.Tick, m.rescan())
	case "b":
		return m, m.addToBaseline()
	case "c":
		return m, m.copyPath()
	case "y":
		return m, m.copyFinding()
	case "e":
		return m, m.export("json")
	case "E":
		return m, m.export("sarif")
	case "a":
		return m, m.loadHistory()
	}

	m.table, cmd = m.table.Update(msg)
	m.updateDetail()
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	if m.scanning {
		box := popupStyle.Width(40).Align(lipgloss.Center).Render(m.spinner.View() + "  Rescanning...\n\nPlease wait")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(helpText()))
	}
	if m.showHistory {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(m.historyView()))
	}

	header := headerStyle.Width(m.width).Render(m.statsLine())
	tableView := paneStyle.Width(m.width - 2).Render(m.table.View())
	detail := m.viewport.View()
	if len(m.display) == 0 {
		msg := "No secrets to review."
		if len(m.findings) > 0 {
			msg = "No findings match filter.\n\nPress Esc to clear"
		}
		detail = lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, msg)
	}
	detailView := paneStyle.Width(m.width - 2).Render(detail)

	var bottom string
	if m.searchMode {
		bottom = statusStyle.Width(m.width).Render(m.search.View() + fmt.Sprintf(" (%d matches)", len(m.display)))
	} else {
		bottom = statusStyle.Width(m.width).Padding(0, 2).Render(m.statusLine())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, tableView, detailView, bottom)
}

func (m Model) statsLine() string {
	counts := map[types.Severity]int{}
	for _, idx := range m.display {
		counts[m.findings[idx].Severity]++
	}
	var parts []string
	if m.result != nil && !m.result.Complete {
		parts = append(parts, warnStyle.Render("INCOMPLETE"))
	}
	if len(m.findings) == 0 {
		parts = append(parts, sevLowStyle.Render("[OK] No secrets detected"))
	} else {
		total := fmt.Sprintf("Total: %d", len(m.findings))
		if len(m.display) != len(m.findings) {
			total = fmt.Sprintf("Showing: %d/%d", len(m.display), len(m.findings))
		}
		parts = append(parts, total,
			sevCritStyle.Render("Crit:")+fmt.Sprintf(" %d", counts[types.SevCritical]),
			sevHighStyle.Render("High:")+fmt.Sprintf(" %d", counts[types.SevHigh]),
			sevMedStyle.Render("Med:")+fmt.Sprintf(" %d", counts[types.SevMed]),
			sevLowStyle.Render("Low:")+fmt.Sprintf(" %d", counts[types.SevLow]),
		)
	}
	if m.result != nil && len(m.result.Errors) > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("Errors: %d", len(m.result.Errors))))
	}
	if m.sortColumn != SortDefault {
		dir := "asc"
		if m.sortReverse {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("[sort: %s %s]", m.sortColumn, dir))
	}
	return strings.Join(parts, "  |  ")
}

func (m Model) statusLine() string {
	var when string
	if m.result != nil && !m.result.FinishedAt.IsZero() {
		if m.opts.Cached {
			when = "Cached: "
		} else {
			when = "Scanned: "
		}
		when += formatDuration(time.Since(m.result.FinishedAt)) + " ago"
	}
	spacer := m.width - 4 - lipgloss.Width(m.status) - lipgloss.Width(when)
	if spacer < 1 {
		spacer = 1
	}
	return m.status + strings.Repeat(" ", spacer) + when
}

func helpText() string {
	rows := [][2]string{
		{"j / k", "Move down / up"},
		{"/", "Search findings"},
		{"0-3", "Filter CRIT / HIGH / MED / LOW"},
		{"esc", "Clear filters"},
		{"s / S", "Cycle sort / reverse"},
		{"h", "Hide or show samples"},
		{"b", "Accept finding into baseline"},
		{"c / y", "Copy path / finding JSON"},
		{"e / E", "Export view as JSON / SARIF"},
		{"a", "Scan history"},
		{"r", "Rescan"},
		{"q", "Quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keyboard Shortcuts") + "\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "  %-8s %s\n", sevLowStyle.Render(r[0]), r[1])
	}
	return b.String()
}

func (m Model) historyView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Scan History") + "\n\n")
	if len(m.history) == 0 {
		b.WriteString("No recorded scans.\n")
	}
	for i, rec := range m.history {
		cursor := "  "
		if i == m.historyIdx {
			cursor = "> "
		}
		state := "complete"
		if !rec.Complete {
			state = "INCOMPLETE"
		}
		fmt.Fprintf(&b, "%s%s  %3d findings  exit %d  %s\n",
			cursor, rec.Timestamp.Local().Format("Jan 2 15:04"), rec.TotalFindings, rec.ExitCode, state)
	}
	b.WriteString("\n" + dimStyle.Render("esc: close"))
	return b.String()
}

// Package tui is the terminal front end: it draws session snapshots and
// turns typed commands into local player input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/intvec"
	"github.com/lox/colorbets/internal/round"
	"github.com/lox/colorbets/internal/session"
)

const defaultRefresh = time.Second / 30

// Controller is the session surface the front end needs.
type Controller interface {
	Snapshot() session.Snapshot
	Done() <-chan struct{}
	SelectChips(chips []int) error
	ReturnChips(chips []int) error
	PickColor(color betting.Color) error
	Ready() error
	Leave() error
}

// Options configure the model.
type Options struct {
	// Colors names the stack colors, in stack order.
	Colors []string
	// Refresh is how often snapshots are polled.
	Refresh time.Duration
	// Plain disables colors.
	Plain bool
	// TestMode captures log entries and skips viewport updates.
	TestMode bool
}

type refreshMsg time.Time

type sessionEndedMsg struct{}

// Model is the bubbletea model for a round set.
type Model struct {
	ctrl    Controller
	colors  []string
	refresh time.Duration
	logger  *log.Logger

	// UI components
	logViewport  viewport.Model
	commandInput textinput.Model

	// State
	gameLog     []string
	snap        session.Snapshot
	lastNotice  round.Notice
	lastOutcome betting.Color
	quitting    bool
	focusedPane int // 0 = log, 1 = input

	// Dimensions
	width       int
	height      int
	initialized bool

	// Test mode
	testMode    bool
	capturedLog []string
}

// NewModel creates a model that drives ctrl.
func NewModel(ctrl Controller, logger *log.Logger, opts Options) *Model {
	if opts.Plain || opts.TestMode {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "select 3 5, return 3 2, red, green, ready, leave, help"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &Model{
		ctrl:         ctrl,
		colors:       opts.Colors,
		refresh:      refresh,
		logger:       logger.WithPrefix("tui"),
		logViewport:  vp,
		commandInput: ti,
		gameLog:      []string{},
		focusedPane:  1,
		testMode:     opts.TestMode,
		capturedLog:  []string{},
	}
}

// Run shows the model until the session ends or ctx is cancelled.
func Run(ctx context.Context, m *Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init starts snapshot polling.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.poll(), m.waitForEnd())
}

func (m *Model) poll() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *Model) waitForEnd() tea.Cmd {
	done := m.ctrl.Done()
	return func() tea.Msg {
		<-done
		return sessionEndedMsg{}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case refreshMsg:
		m.Observe(m.ctrl.Snapshot())
		return m, m.poll()

	case sessionEndedMsg:
		m.Observe(m.ctrl.Snapshot())
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updated dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if err := m.Execute("leave"); err != nil {
				m.quitting = true
				return m, tea.Sequence(tea.ClearScreen, tea.Quit)
			}
			return m, nil
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.commandInput.Focus()
			} else {
				m.focusedPane = 0
				m.commandInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := strings.TrimSpace(m.commandInput.Value())
				m.commandInput.SetValue("")
				if err := m.Execute(input); err != nil {
					m.AddLogEntry(ErrorStyle.Render(err.Error()))
				}
			}
		case "up":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.commandInput, cmd = m.commandInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// Observe records a snapshot and logs whatever changed since the last one.
func (m *Model) Observe(snap session.Snapshot) {
	m.snap = snap

	if snap.Message != m.lastNotice {
		m.lastNotice = snap.Message
		if snap.Message.Text != "" {
			m.AddLogEntry(noticeStyle(snap.Message.Level).Render(snap.Message.Text))
		}
	}
	if snap.Outcome != m.lastOutcome {
		m.lastOutcome = snap.Outcome
		if snap.Outcome.Valid() {
			m.AddLogEntry("Outcome: " + colorStyle(snap.Outcome).Render(strings.ToUpper(snap.Outcome.String())))
		}
	}
}

// Execute runs one typed command. Stacks are numbered from 1 or named by
// their color.
func (m *Model) Execute(input string) error {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "select", "s", "add":
		v, err := m.chipsArg(args)
		if err != nil {
			return err
		}
		return m.ctrl.SelectChips(v)
	case "return", "ret", "take":
		if len(args) == 1 && args[0] == "all" {
			if intvec.Sum(m.snap.Local.Committed) == 0 {
				return errors.New("nothing in the bet to take back")
			}
			return m.ctrl.ReturnChips(m.snap.Local.Committed)
		}
		v, err := m.chipsArg(args)
		if err != nil {
			return err
		}
		return m.ctrl.ReturnChips(v)
	case "red", "green":
		c, _ := betting.ParseColor(cmd)
		return m.ctrl.PickColor(c)
	case "pick":
		if len(args) != 1 {
			return errors.New("usage: pick red|green")
		}
		c, err := betting.ParseColor(args[0])
		if err != nil || !c.Valid() {
			return fmt.Errorf("pick red or green, not %q", args[0])
		}
		return m.ctrl.PickColor(c)
	case "ready", "bet":
		return m.ctrl.Ready()
	case "leave", "quit", "q":
		m.AddLogEntry(InfoStyle.Render("Leaving..."))
		return m.ctrl.Leave()
	case "help", "?":
		for _, line := range helpLines {
			m.AddLogEntry(InfoStyle.Render(line))
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

var helpLines = []string{
	"select <stack> [n]  move n chips (default 1) from a stack into the bet",
	"return <stack> [n]  take chips back out of the bet",
	"return all          take every chip back out of the bet",
	"red | green         pick the color you bet on",
	"ready               place the bet",
	"leave               leave the round set",
}

// chipsArg builds a per-stack request from "<stack> [n]".
func (m *Model) chipsArg(args []string) ([]int, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errors.New("usage: select|return <stack> [n]")
	}
	stacks := len(m.snap.Local.Bank)
	if stacks == 0 {
		return nil, errors.New("the round set has not started yet")
	}

	idx := -1
	if n, err := strconv.Atoi(args[0]); err == nil {
		idx = n - 1
	} else {
		for i, name := range m.colors {
			if name == args[0] && i < stacks {
				idx = i
				break
			}
		}
	}
	if idx < 0 || idx >= stacks {
		return nil, fmt.Errorf("no stack %q, pick 1-%d or a stack color", args[0], stacks)
	}

	count := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid chip count %q", args[1])
		}
		count = n
	}

	v := intvec.Zeros(stacks)
	v[idx] = count
	return v, nil
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1)).
		Render(actionContent)

	sidebarContent := m.renderSidebar()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 25)
	boardContent := m.renderBoard()
	boardHeight := max(lipgloss.Height(boardContent), lipgloss.Height(sidebarContent))

	boardPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(max(m.width-sidebarWidth-4, 1)).
		Height(boardHeight).
		Render(boardContent)
	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(boardHeight).
		Render(sidebarContent)

	logWidth := max(m.width-2, 1)
	logHeight := max(m.height-boardHeight-actionHeight-6, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = logHeight
	if !m.initialized && logHeight > 1 {
		m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(logHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, boardPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, logStyle.Render(m.logViewport.View()), actionPane)
}

func (m *Model) renderBoard() string {
	var b strings.Builder
	b.WriteString(m.renderPlayer(m.snap.Remote, "opponent"))
	b.WriteString("\n\n")
	b.WriteString(m.renderPlayer(m.snap.Local, "you"))
	return b.String()
}

func (m *Model) renderPlayer(v round.PlayerView, label string) string {
	var b strings.Builder

	name := v.Name
	if name == "" {
		name = "?"
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf(" %s (%s) ", name, label)))
	b.WriteString(fmt.Sprintf("  sent %d", v.TotalSent))
	if v.Picked != betting.None {
		b.WriteString("  on " + colorStyle(v.Picked).Render(v.Picked.String()))
	}
	if v.Ready {
		b.WriteString("  " + SuccessStyle.Render("ready"))
	}
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("bank ") + m.renderStacks(v.Bank) + "\n")
	b.WriteString(LabelStyle.Render("bet  ") + m.renderStacks(v.Pool))
	return b.String()
}

func (m *Model) renderStacks(stacks []chips.Stack) string {
	cells := make([]string, len(stacks))
	for i, s := range stacks {
		style := stackStyle(s.Color)
		if s.Full() {
			style = style.Underline(true)
		}
		cells[i] = style.Render(fmt.Sprintf("%3d", s.Count))
	}
	return strings.Join(cells, " ")
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	st := m.snap.Stats

	b.WriteString(InfoStyle.Render("Round set " + m.snap.RoundSetID))
	b.WriteString("\n")
	role := "guest"
	if m.snap.Authority {
		role = "host"
	}
	b.WriteString(fmt.Sprintf("Role: %s\n", role))
	b.WriteString(fmt.Sprintf("State: %s\n", m.snap.State))
	b.WriteString(fmt.Sprintf("Rounds: %d\n", st.Rounds))
	b.WriteString(fmt.Sprintf("Won %d  Lost %d  Push %d\n", st.Wins, st.Losses, st.Pushes))
	b.WriteString(fmt.Sprintf("Restocks: %d\n", st.Restocks))
	if res := m.snap.Results; res.Rounds > 0 {
		b.WriteString(fmt.Sprintf("Net: %+d (%+.1f/round)\n", res.Net, res.Mean))
	}
	if m.snap.Outcome.Valid() {
		b.WriteString("Outcome: " + colorStyle(m.snap.Outcome).Render(strings.ToUpper(m.snap.Outcome.String())))
	}
	return b.String()
}

func (m *Model) renderActionPane() string {
	var b strings.Builder

	switch {
	case m.snap.Leaving:
		b.WriteString(InfoStyle.Render("Leaving..."))
	case m.snap.Local.Frozen:
		b.WriteString(InfoStyle.Render("Waiting for the other player..."))
	case m.snap.Hint != "":
		b.WriteString(HintStyle.Render(m.snap.Hint))
	default:
		b.WriteString(HintStyle.Render(m.lastNotice.Text))
	}
	b.WriteString("\n")
	b.WriteString(m.commandInput.View())
	b.WriteString("\n")

	help := "Tab to scroll log • Enter to submit • Esc to leave"
	if m.focusedPane == 0 {
		help = "Log focused: ↑↓ scroll, PgUp/PgDn half page, Tab to input"
	}
	b.WriteString(InfoStyle.Render(help))
	return b.String()
}

// AddLogEntry adds an entry to the game log
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)

	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return
	}

	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// CapturedLog returns the captured log entries (test mode only)
func (m *Model) CapturedLog() []string {
	if !m.testMode {
		return nil
	}
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// IsTestMode returns whether the TUI is in test mode
func (m *Model) IsTestMode() bool {
	return m.testMode
}

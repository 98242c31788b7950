package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/round"
	"github.com/lox/colorbets/internal/session"
)

type call struct {
	name  string
	chips []int
	color betting.Color
}

type fakeController struct {
	snap  session.Snapshot
	done  chan struct{}
	calls []call
	err   error
}

func newFakeController(stacks int) *fakeController {
	f := &fakeController{done: make(chan struct{})}
	f.snap.State = round.AwaitingBets
	f.snap.RoundSetID = "0000000000000000000000000"
	f.snap.Message = round.Notice{Text: "Please place a bet"}
	f.snap.Local = round.PlayerView{Name: "alice"}
	f.snap.Remote = round.PlayerView{Name: "bob"}
	for i := 0; i < stacks; i++ {
		st := chips.Stack{Index: i, Count: 10, Capacity: 20, Color: []string{"red", "blue", "green"}[i%3]}
		f.snap.Local.Bank = append(f.snap.Local.Bank, st)
		f.snap.Local.Pool = append(f.snap.Local.Pool, chips.Stack{Index: i, Capacity: 20, Color: st.Color})
		f.snap.Remote.Bank = append(f.snap.Remote.Bank, st)
		f.snap.Remote.Pool = append(f.snap.Remote.Pool, chips.Stack{Index: i, Capacity: 20, Color: st.Color})
	}
	return f
}

func (f *fakeController) Snapshot() session.Snapshot { return f.snap }
func (f *fakeController) Done() <-chan struct{}      { return f.done }

func (f *fakeController) SelectChips(c []int) error {
	f.calls = append(f.calls, call{name: "select", chips: c})
	return f.err
}

func (f *fakeController) ReturnChips(c []int) error {
	f.calls = append(f.calls, call{name: "return", chips: c})
	return f.err
}

func (f *fakeController) PickColor(c betting.Color) error {
	f.calls = append(f.calls, call{name: "pick", color: c})
	return f.err
}

func (f *fakeController) Ready() error {
	f.calls = append(f.calls, call{name: "ready"})
	return f.err
}

func (f *fakeController) Leave() error {
	f.calls = append(f.calls, call{name: "leave"})
	return f.err
}

func newTestModel(t *testing.T, stacks int) (*Model, *fakeController) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	ctrl := newFakeController(stacks)
	m := NewModel(ctrl, logger, Options{Colors: []string{"red", "blue", "green"}, TestMode: true})
	m.Observe(ctrl.Snapshot())
	return m, ctrl
}

func TestExecute(t *testing.T) {
	tests := []struct {
		input string
		want  call
	}{
		{"select 1 5", call{name: "select", chips: []int{5, 0, 0}}},
		{"s 3", call{name: "select", chips: []int{0, 0, 1}}},
		{"select blue 2", call{name: "select", chips: []int{0, 2, 0}}},
		{"return 2 4", call{name: "return", chips: []int{0, 4, 0}}},
		{"RED", call{name: "pick", color: betting.Red}},
		{"pick green", call{name: "pick", color: betting.Green}},
		{"ready", call{name: "ready"}},
		{"leave", call{name: "leave"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, ctrl := newTestModel(t, 3)
			require.NoError(t, m.Execute(tt.input))
			require.Len(t, ctrl.calls, 1)
			assert.Equal(t, tt.want, ctrl.calls[0])
		})
	}
}

func TestExecuteReturnAll(t *testing.T) {
	m, ctrl := newTestModel(t, 3)
	assert.ErrorContains(t, m.Execute("return all"), "nothing in the bet")
	assert.Empty(t, ctrl.calls)

	ctrl.snap.Local.Committed = []int{2, 0, 5}
	m.Observe(ctrl.Snapshot())
	require.NoError(t, m.Execute("take all"))
	require.Len(t, ctrl.calls, 1)
	assert.Equal(t, call{name: "return", chips: []int{2, 0, 5}}, ctrl.calls[0])
}

func TestExecuteRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"dance":        "unknown command",
		"select":       "usage",
		"select 4":     "no stack",
		"select 0":     "no stack",
		"select pink":  "no stack",
		"select 1 two": "invalid chip count",
		"select 1 -3":  "invalid chip count",
		"pick blue":    "pick red or green",
	}

	for input, msg := range tests {
		t.Run(input, func(t *testing.T) {
			m, ctrl := newTestModel(t, 3)
			err := m.Execute(input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), msg)
			assert.Empty(t, ctrl.calls)
		})
	}

	t.Run("before the round set starts", func(t *testing.T) {
		m, _ := newTestModel(t, 0)
		assert.ErrorContains(t, m.Execute("select 1"), "not started")
	})

	t.Run("empty input is ignored", func(t *testing.T) {
		m, ctrl := newTestModel(t, 3)
		assert.NoError(t, m.Execute("   "))
		assert.Empty(t, ctrl.calls)
	})
}

func TestObserveLogsChanges(t *testing.T) {
	m, ctrl := newTestModel(t, 3)
	assert.Equal(t, []string{"Please place a bet"}, m.CapturedLog())

	m.Observe(ctrl.Snapshot())
	assert.Len(t, m.CapturedLog(), 1, "unchanged snapshot logs nothing")

	ctrl.snap.Outcome = betting.Green
	ctrl.snap.Message = round.Notice{Text: "Congratulations! You won!", Level: round.Won}
	m.Observe(ctrl.Snapshot())
	assert.Equal(t, []string{
		"Please place a bet",
		"Congratulations! You won!",
		"Outcome: GREEN",
	}, m.CapturedLog())
}

func TestEnterRunsCommand(t *testing.T) {
	m, ctrl := newTestModel(t, 3)

	m.commandInput.SetValue("select 2 3")
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, ctrl.calls, 1)
	assert.Equal(t, []int{0, 3, 0}, ctrl.calls[0].chips)
	assert.Empty(t, m.commandInput.Value())

	m.commandInput.SetValue("juggle")
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	entries := m.CapturedLog()
	assert.Contains(t, entries[len(entries)-1], "unknown command")
}

func TestEscapeLeaves(t *testing.T) {
	m, ctrl := newTestModel(t, 3)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "waits for the session to end")
	assert.Equal(t, "leave", ctrl.calls[0].name)

	ctrl.err = session.ErrClosed
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotNil(t, cmd, "quits at once when the session is gone")
}

func TestSessionEndQuits(t *testing.T) {
	m, _ := newTestModel(t, 3)

	_, cmd := m.Update(sessionEndedMsg{})
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestView(t *testing.T) {
	m, ctrl := newTestModel(t, 3)
	assert.Equal(t, "Loading...", m.View())

	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	ctrl.snap.Local.Picked = betting.Red
	ctrl.snap.Hint = "Please place 10 more chips"
	ctrl.snap.Stats.Rounds = 4
	_, _ = m.Update(refreshMsg{})

	view := m.View()
	for _, want := range []string{"alice (you)", "bob (opponent)", "on red", "Please place 10 more chips", "Rounds: 4", "awaiting_bets"} {
		assert.True(t, strings.Contains(view, want), "view should contain %q", want)
	}
}

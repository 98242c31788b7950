package round

import (
	"io"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/intvec"
	"github.com/lox/colorbets/internal/randutil"
)

type fakePeer struct {
	selected [][]int
	returned [][]int
	picked   []betting.Color
	bets     []betting.Bet
	outcomes []betting.Color
	resets   int
	left     int
}

func (f *fakePeer) SelectChips(c []int) error {
	f.selected = append(f.selected, c)
	return nil
}

func (f *fakePeer) ReturnChips(c []int) error {
	f.returned = append(f.returned, c)
	return nil
}

func (f *fakePeer) PickedColor(c betting.Color) error {
	f.picked = append(f.picked, c)
	return nil
}

func (f *fakePeer) PlacedBet(b betting.Bet) error {
	f.bets = append(f.bets, b)
	return nil
}

func (f *fakePeer) RoundReset() error {
	f.resets++
	return nil
}

func (f *fakePeer) OutcomeAnnounced(c betting.Color) error {
	f.outcomes = append(f.outcomes, c)
	return nil
}

func (f *fakePeer) PlayerLeft() error {
	f.left++
	return nil
}

type recordingDisplay struct {
	notices  []Notice
	hints    []string
	outcomes []betting.Color
}

func (d *recordingDisplay) ShowMessage(n Notice)            { d.notices = append(d.notices, n) }
func (d *recordingDisplay) ShowHint(text string)            { d.hints = append(d.hints, text) }
func (d *recordingDisplay) ShowOutcome(color betting.Color) { d.outcomes = append(d.outcomes, color) }

func (d *recordingDisplay) last() Notice {
	if len(d.notices) == 0 {
		return Notice{}
	}
	return d.notices[len(d.notices)-1]
}

type testRound struct {
	c       *Coordinator
	peer    *fakePeer
	display *recordingDisplay
}

var testColors = []string{"black", "blue", "cyan", "gray", "green", "magenta", "red", "white", "yellow", "lavender"}

func newTestRound(t *testing.T, cfg Config, stacks, initial int) *testRound {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})

	chipCfg := chips.Config{
		Colors:   testColors[:stacks],
		Initial:  initial,
		Capacity: 2 * initial,
		Speed:    1,
	}
	settings := betting.Settings{MinChipsSent: 1, MaxChipsSent: 10, ChipsRequiredToBet: 10}
	if cfg.InitialChipsPerStack == 0 {
		cfg.InitialChipsPerStack = initial
	}

	peer := &fakePeer{}
	display := &recordingDisplay{}
	c, err := NewCoordinator(cfg,
		betting.NewPlayer("local", chipCfg, settings, logger),
		betting.NewPlayer("remote", chipCfg, settings, logger),
		peer, display, randutil.New(3), logger)
	require.NoError(t, err)
	return &testRound{c: c, peer: peer, display: display}
}

func (r *testRound) placeLocal(t *testing.T, chipsOut []int, color betting.Color) {
	t.Helper()
	require.True(t, r.c.Local().Select(chipsOut))
	r.c.Local().PickColor(color)
	require.True(t, r.c.Local().TrySetReady())
}

func (r *testRound) placeRemote(chipsOut []int, color betting.Color) {
	r.c.HandleSelectChips(chipsOut)
	r.c.HandlePlacedBet(betting.NewBet(color, chipsOut))
}

func (r *testRound) runUntil(t *testing.T, done func() bool) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if done() {
			return
		}
		require.NoError(t, r.c.Tick(time.Second))
	}
	t.Fatalf("condition not reached, state %s", r.c.State())
}

func (r *testRound) finishRound(t *testing.T) {
	t.Helper()
	want := r.c.Stats().Rounds + 1
	r.runUntil(t, func() bool { return r.c.Stats().Rounds == want })
}

func oneStack(n, stacks int) []int {
	out := intvec.Zeros(stacks)
	out[0] = n
	return out
}

func TestNewCoordinatorRequiresPeer(t *testing.T) {
	t.Parallel()

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	cfg := chips.Config{Colors: []string{"red"}, Initial: 1, Capacity: 2, Speed: 1}
	p := betting.NewPlayer("a", cfg, betting.Settings{}, logger)
	q := betting.NewPlayer("b", cfg, betting.Settings{}, logger)

	_, err := NewCoordinator(Config{}, p, q, nil, nil, nil, logger)
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestRoundPayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		local       betting.Color
		remote      betting.Color
		wantLocal   int
		wantRemote  int
		wantOutcome string
	}{
		{"local wins", betting.Red, betting.Green, 110, 90, "win"},
		{"remote wins", betting.Green, betting.Red, 90, 110, "loss"},
		{"both right", betting.Red, betting.Red, 100, 100, "push"},
		{"both wrong", betting.Green, betting.Green, 100, 100, "push"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRound(t, Config{RevealPause: 2 * time.Second}, 10, 10)
			r.c.HandleOutcome(betting.Red)

			r.placeLocal(t, oneStack(10, 10), tt.local)
			r.placeRemote(oneStack(10, 10), tt.remote)
			assert.Equal(t, RevealDelay, r.c.State())

			r.finishRound(t)

			local, remote := r.c.Local(), r.c.Remote()
			assert.Equal(t, tt.wantLocal, local.Bank().Sum())
			assert.Equal(t, tt.wantRemote, remote.Bank().Sum())
			assert.Zero(t, local.Pool().Sum())
			assert.Zero(t, remote.Pool().Sum())
			assert.Equal(t, 200, local.Holdings()+remote.Holdings())
			assert.Equal(t, tt.wantLocal-100, r.c.Results().Net)
			assert.Equal(t, tt.wantLocal-100, r.c.Snapshot().Results.Net)

			stats := r.c.Stats()
			switch tt.wantOutcome {
			case "win":
				assert.Equal(t, 1, stats.Wins)
			case "loss":
				assert.Equal(t, 1, stats.Losses)
			default:
				assert.Equal(t, 1, stats.Pushes)
			}

			assert.Equal(t, AwaitingBets, r.c.State())
			assert.Equal(t, betting.None, r.c.Outcome())
			assert.Empty(t, r.peer.outcomes, "an adopted outcome is never re-announced")
			assert.Equal(t, 1, r.peer.resets)
			assert.Len(t, r.peer.bets, 1)
			assert.Equal(t, msgPlaceBet, r.display.last().Text)
		})
	}
}

func TestAuthorityDrawsOutcomeOnce(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{Authority: true, RevealPause: time.Second}, 10, 10)

	r.placeLocal(t, oneStack(10, 10), betting.Red)
	assert.Empty(t, r.peer.outcomes)
	assert.Equal(t, msgWaitingOther, r.display.last().Text)

	r.placeRemote(oneStack(10, 10), betting.Green)
	require.Len(t, r.peer.outcomes, 1)
	drawn := r.peer.outcomes[0]
	assert.True(t, drawn.Valid())
	assert.Equal(t, drawn, r.c.Outcome())
	assert.Equal(t, RevealDelay, r.c.State())

	other := betting.Red
	if drawn == betting.Red {
		other = betting.Green
	}
	r.c.HandleOutcome(other)
	assert.Equal(t, drawn, r.c.Outcome(), "first outcome wins")

	r.finishRound(t)
	assert.Len(t, r.peer.outcomes, 1)
	assert.Equal(t, 200, r.c.Local().Holdings()+r.c.Remote().Holdings())
}

func TestFollowerWaitsForAnnouncement(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{RevealPause: time.Second}, 10, 10)
	r.placeRemote(oneStack(10, 10), betting.Green)
	assert.Equal(t, msgOtherPlaced, r.display.last().Text)
	r.placeLocal(t, oneStack(10, 10), betting.Red)

	assert.Equal(t, DeterminingOutcome, r.c.State())
	for i := 0; i < 50; i++ {
		require.NoError(t, r.c.Tick(time.Second))
	}
	assert.Equal(t, DeterminingOutcome, r.c.State())
	assert.Empty(t, r.peer.outcomes)

	r.c.HandleOutcome(betting.Green)
	assert.Equal(t, RevealDelay, r.c.State())
	assert.Equal(t, []betting.Color{betting.Green}, r.display.outcomes)

	r.finishRound(t)
	assert.Equal(t, 1, r.c.Stats().Losses)
	assert.Equal(t, 90, r.c.Local().Bank().Sum())
	assert.Equal(t, 110, r.c.Remote().Bank().Sum())
}

func TestRevealPolicy(t *testing.T) {
	t.Parallel()

	t.Run("after all placed bet", func(t *testing.T) {
		t.Parallel()

		r := newTestRound(t, Config{}, 10, 10)
		r.placeRemote(oneStack(10, 10), betting.Green)
		assert.Equal(t, betting.None, r.c.Remote().PickedColor())
		assert.True(t, r.c.Remote().Ready())

		r.placeLocal(t, oneStack(10, 10), betting.Red)
		assert.Empty(t, r.peer.picked, "color picks stay private")
		assert.Equal(t, betting.Green, r.c.Remote().PickedColor())
	})

	t.Run("always", func(t *testing.T) {
		t.Parallel()

		r := newTestRound(t, Config{RevealPolicy: Always}, 10, 10)
		r.c.Local().PickColor(betting.Red)
		assert.Equal(t, []betting.Color{betting.Red}, r.peer.picked)

		r.c.HandlePickedColor(betting.Green)
		assert.Equal(t, betting.Green, r.c.Remote().PickedColor())
	})
}

func TestSelectionsAreMirrored(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 4, 10)
	require.True(t, r.c.Local().Select([]int{3, 0, 0, 0}))
	require.True(t, r.c.Local().Return([]int{1, 0, 0, 0}))
	assert.Equal(t, [][]int{{3, 0, 0, 0}}, r.peer.selected)
	assert.Equal(t, [][]int{{1, 0, 0, 0}}, r.peer.returned)
	assert.Equal(t, "Please place 8 more chips", r.display.hints[len(r.display.hints)-1])

	// remote payloads go through the same clamping as local input
	r.c.HandleSelectChips([]int{50, 0, 0, 0})
	assert.Equal(t, 10, r.c.Remote().TotalSent())
	assert.Equal(t, []int{0, 10, 10, 10}, r.c.Remote().Bank().Projected())
}

func TestBankruptcyRestock(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{BankruptcyPause: 3 * time.Second}, 2, 5)
	r.c.HandleOutcome(betting.Green)
	r.placeLocal(t, []int{5, 5}, betting.Red)
	r.placeRemote([]int{5, 5}, betting.Green)

	r.runUntil(t, func() bool { return r.c.State() == BankruptcyNotice })
	assert.Equal(t, Notice{Text: msgYouLost, Level: Lost}, r.display.last())
	assert.Equal(t, 0, r.c.Local().Bank().Sum())
	assert.Equal(t, []int{10, 10}, r.c.Remote().Bank().Counts())

	r.finishRound(t)
	assert.Equal(t, []int{5, 5}, r.c.Local().Bank().Counts())
	assert.Equal(t, []int{5, 5}, r.c.Remote().Bank().Counts())
	assert.Equal(t, 1, r.c.Stats().Restocks)
	assert.Equal(t, 1, r.peer.resets)
}

func TestBankruptOpponent(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 2, 5)
	r.c.HandleOutcome(betting.Red)
	r.placeLocal(t, []int{5, 5}, betting.Red)
	r.placeRemote([]int{5, 5}, betting.Green)

	r.runUntil(t, func() bool { return r.c.State() == BankruptcyNotice })
	assert.Equal(t, Notice{Text: msgYouWon, Level: Won}, r.display.last())

	r.finishRound(t)
	assert.Equal(t, 10, r.c.Remote().Holdings())
	assert.Equal(t, 10, r.c.Local().Holdings())
}

func TestInputFrozenUntilOpponentResets(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 10, 10)
	r.c.HandleOutcome(betting.Red)
	r.placeLocal(t, oneStack(10, 10), betting.Red)
	r.placeRemote(oneStack(10, 10), betting.Green)
	r.finishRound(t)

	local := r.c.Local()
	assert.True(t, local.Frozen())
	assert.False(t, local.Select([]int{1}))

	r.c.HandleRoundReset()
	assert.False(t, local.Frozen())
	assert.True(t, local.Select(oneStack(1, 10)))
}

func TestFrozenPickIsNotBroadcast(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{RevealPolicy: Always}, 10, 10)
	r.c.HandleOutcome(betting.Red)
	r.placeLocal(t, oneStack(10, 10), betting.Red)
	r.placeRemote(oneStack(10, 10), betting.Green)
	r.finishRound(t)

	local := r.c.Local()
	require.True(t, local.Frozen())
	sent := len(r.peer.picked)

	local.PickColor(betting.Green)
	assert.Len(t, r.peer.picked, sent, "the opponent is still settling")
	assert.Equal(t, betting.None, local.PickedColor())

	r.c.HandleRoundReset()
	local.PickColor(betting.Green)
	assert.Equal(t, betting.Green, local.PickedColor())
	require.Len(t, r.peer.picked, sent+1)
	assert.Equal(t, betting.Green, r.peer.picked[sent])
}

func TestCrossStackPayout(t *testing.T) {
	t.Parallel()

	first := oneStack(10, 10)
	second := intvec.Zeros(10)
	second[1] = 10

	tests := []struct {
		name       string
		local      []int
		localColor betting.Color
		remote     []int
		remoteCol  betting.Color
		wantLocal  []int
		wantRemote []int
	}{
		{
			name:       "winner receives the loser's stack",
			local:      first,
			localColor: betting.Red,
			remote:     second,
			remoteCol:  betting.Green,
			wantLocal:  []int{10, 20, 10, 10, 10, 10, 10, 10, 10, 10},
			wantRemote: []int{10, 0, 10, 10, 10, 10, 10, 10, 10, 10},
		},
		{
			name:       "loser's view of the same round",
			local:      second,
			localColor: betting.Green,
			remote:     first,
			remoteCol:  betting.Red,
			wantLocal:  []int{10, 0, 10, 10, 10, 10, 10, 10, 10, 10},
			wantRemote: []int{10, 20, 10, 10, 10, 10, 10, 10, 10, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRound(t, Config{}, 10, 10)
			r.c.HandleOutcome(betting.Red)
			r.placeLocal(t, tt.local, tt.localColor)
			r.placeRemote(tt.remote, tt.remoteCol)
			r.finishRound(t)

			assert.Equal(t, tt.wantLocal, r.c.Local().Bank().Counts())
			assert.Equal(t, tt.wantRemote, r.c.Remote().Bank().Counts())
			assert.Equal(t, intvec.Zeros(10), r.c.Local().Pool().Counts())
			assert.Equal(t, intvec.Zeros(10), r.c.Remote().Pool().Counts())

			snap := r.c.Snapshot()
			assert.True(t, slices.ContainsFunc(append(snap.Local.Bank, snap.Remote.Bank...), chips.Stack.Full),
				"the winning stack sits at capacity")
		})
	}
}

func TestSelectReturnConservesChips(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 10, 10)
	local, remote := r.c.Local(), r.c.Remote()
	at := func(stack, n int) []int {
		v := intvec.Zeros(10)
		v[stack] = n
		return v
	}

	steps := []func(){
		func() { local.Select([]int{3, 2, 0, 0, 0, 0, 0, 0, 0, 0}) },
		func() { r.c.HandleSelectChips(at(2, 5)) },
		func() { local.Return(at(0, 1)) },
		func() { r.c.HandleReturnChips(at(2, 2)) },
		func() { local.Select(at(3, 4)) },
		func() { r.c.HandleSelectChips(at(0, 6)) },
		func() { local.Return([]int{2, 2, 0, 0, 0, 0, 0, 0, 0, 0}) },
		func() { r.c.HandleReturnChips(intvec.Fill(10, 9)) },
	}

	conserved := func() {
		t.Helper()
		assert.Equal(t, 200, local.Holdings()+remote.Holdings())
		assert.Equal(t, 200, local.Bank().Sum()+local.Pool().Sum()+remote.Bank().Sum()+remote.Pool().Sum())
	}

	for _, step := range steps {
		step()
		conserved()
		for i := 0; i < 5; i++ {
			require.NoError(t, r.c.Tick(300*time.Millisecond))
			conserved()
		}
	}
	r.runUntil(t, func() bool { return local.Idle() && remote.Idle() })
	conserved()

	assert.Equal(t, local.TotalSent(), local.Pool().Sum())
	assert.Equal(t, []int{0, 0, 0, 4, 0, 0, 0, 0, 0, 0}, local.Pool().Counts())
	assert.Zero(t, remote.Pool().Sum())
	assert.Zero(t, remote.TotalSent())
}

func TestConsecutiveRoundsConserveChips(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{Authority: true}, 10, 10)
	for i := 0; i < 3; i++ {
		r.c.HandleRoundReset()
		bet := intvec.Zeros(10)
		bet[i] = 10
		r.placeLocal(t, bet, betting.Red)
		r.placeRemote(bet, betting.Green)
		r.finishRound(t)
		assert.Equal(t, 200, r.c.Local().Bank().Sum()+r.c.Remote().Bank().Sum())
	}

	stats := r.c.Stats()
	assert.Equal(t, 3, stats.Rounds)
	assert.Equal(t, 3, stats.Wins+stats.Losses)
	assert.Len(t, r.peer.outcomes, 3)
}

func TestPlayerLeftAborts(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 10, 10)
	require.True(t, r.c.Local().Select(oneStack(4, 10)))

	r.c.HandlePlayerLeft()
	assert.Equal(t, Aborted, r.c.State())
	assert.Equal(t, msgOtherLeft, r.display.last().Text)
	assert.ErrorIs(t, r.c.Tick(time.Second), ErrAborted)
	assert.True(t, r.c.Local().Idle())

	r.c.HandleOutcome(betting.Red)
	assert.Equal(t, betting.None, r.c.Outcome())

	r.c.Leave()
	assert.Zero(t, r.peer.left)
}

func TestLeaveNotifiesPeer(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{}, 10, 10)
	r.c.Leave()
	assert.Equal(t, 1, r.peer.left)
	assert.Equal(t, Aborted, r.c.State())
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRound(t, Config{Authority: true}, 3, 10)
	require.True(t, r.c.Local().Select([]int{2, 0, 0}))

	snap := r.c.Snapshot()
	assert.Equal(t, AwaitingBets, snap.State)
	assert.True(t, snap.Authority)
	assert.Equal(t, "local", snap.Local.Name)
	assert.Equal(t, 2, snap.Local.TotalSent)
	assert.True(t, snap.Local.Moving)
	assert.Len(t, snap.Remote.Bank, 3)
	assert.Equal(t, "black", snap.Local.Bank[0].Color)
}

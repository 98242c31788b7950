// Package round resolves a betting round between a local player and the
// mirror of the remote one: it collects both bets, settles the outcome,
// pays the winner through the chip engines, restocks a bankrupt player and
// resets both sides for the next round.
package round

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/intvec"
	"github.com/lox/colorbets/internal/randutil"
	"github.com/lox/colorbets/internal/statistics"
)

var (
	// ErrNoPeer is returned when a coordinator is built without a way to
	// reach the opponent.
	ErrNoPeer = errors.New("round: no peer to synchronize with")
	// ErrAborted is returned by Tick once the round set was abandoned.
	ErrAborted = errors.New("round: aborted")
)

// Config holds the round resolution settings.
type Config struct {
	RevealPolicy    RevealPolicy
	RevealPause     time.Duration
	BankruptcyPause time.Duration
	// InitialChipsPerStack is the per-stack amount restocked into a
	// bankrupt player's bank.
	InitialChipsPerStack int
	// Authority marks the peer that draws the outcome. The other peer only
	// adopts the announced outcome.
	Authority bool
}

// Stats counts what happened over a round set, from the local side.
type Stats struct {
	Rounds   int
	Wins     int
	Losses   int
	Pushes   int
	Restocks int
}

// Coordinator drives one round set. It is not safe for concurrent use; the
// session loop calls every method from one goroutine.
type Coordinator struct {
	cfg     Config
	local   *betting.Player
	remote  *betting.Player
	peer    Peer
	display Display
	rng     *rand.Rand
	logger  *log.Logger

	state     State
	localBet  *betting.Bet
	remoteBet *betting.Bet
	outcome   betting.Color
	wait      time.Duration
	pending   int
	winner    *betting.Player
	loser     *betting.Player
	stats     Stats
	results   statistics.Statistics
	err       error
}

// NewCoordinator wires local, remote and peer together and routes the local
// player's input events through the coordinator.
func NewCoordinator(cfg Config, local, remote *betting.Player, peer Peer, display Display, rng *rand.Rand, logger *log.Logger) (*Coordinator, error) {
	if peer == nil {
		return nil, ErrNoPeer
	}
	if local == nil || remote == nil {
		return nil, errors.New("round: both players are required")
	}
	if local.Bank().Len() != remote.Bank().Len() {
		return nil, fmt.Errorf("round: players disagree on stack count (%d vs %d)",
			local.Bank().Len(), remote.Bank().Len())
	}
	if display == nil {
		display = NopDisplay{}
	}
	if rng == nil {
		rng, _ = randutil.NewFromOptional(nil)
	}

	c := &Coordinator{
		cfg:     cfg,
		local:   local,
		remote:  remote,
		peer:    peer,
		display: display,
		rng:     rng,
		logger:  logger.WithPrefix("round"),
		state:   AwaitingBets,
	}
	local.SetListener(c)
	display.ShowMessage(Notice{Text: msgPlaceBet})
	display.ShowHint(hint(local))
	return c, nil
}

func (c *Coordinator) State() State            { return c.state }
func (c *Coordinator) Outcome() betting.Color  { return c.outcome }
func (c *Coordinator) Stats() Stats            { return c.stats }
func (c *Coordinator) Local() *betting.Player  { return c.local }
func (c *Coordinator) Remote() *betting.Player { return c.remote }
func (c *Coordinator) Authority() bool         { return c.cfg.Authority }

// Results summarizes the local player's net chips per resolved round.
func (c *Coordinator) Results() statistics.Summary { return c.results.Summary() }

// Bets returns the bets recorded so far this round.
func (c *Coordinator) Bets() (local, remote *betting.Bet) { return c.localBet, c.remoteBet }

// Tick advances both players' engines and then the round state machine.
func (c *Coordinator) Tick(dt time.Duration) error {
	if c.err != nil {
		return c.err
	}
	if c.state == Aborted {
		return ErrAborted
	}
	if err := c.local.Tick(dt); err != nil {
		return c.fail(fmt.Errorf("local engines: %w", err))
	}
	if err := c.remote.Tick(dt); err != nil {
		return c.fail(fmt.Errorf("remote engines: %w", err))
	}

	switch c.state {
	case RevealDelay:
		c.wait -= dt
		if c.wait <= 0 {
			c.resolve()
		}
	case Resolving:
		if c.pending == 0 {
			c.checkBankruptcy()
		}
	case BankruptcyNotice:
		c.wait -= dt
		if c.wait <= 0 {
			c.restock()
		}
	case Restocking:
		if c.pending == 0 {
			c.reset()
		}
	}
	return c.err
}

// OnSelectChips implements betting.Listener for the local player.
func (c *Coordinator) OnSelectChips(chips []int) {
	c.send("select_chips", c.peer.SelectChips(chips))
}

func (c *Coordinator) OnReturnChips(chips []int) {
	c.send("return_chips", c.peer.ReturnChips(chips))
}

func (c *Coordinator) OnPickedColor(color betting.Color) {
	if c.cfg.RevealPolicy == Always {
		c.send("picked_color", c.peer.PickedColor(color))
	}
}

func (c *Coordinator) OnReady(bet betting.Bet) {
	c.send("placed_bet", c.peer.PlacedBet(bet))
	c.addBet(&c.localBet, bet, msgWaitingOther)
}

func (c *Coordinator) OnNotice(message string) {
	c.display.ShowMessage(Notice{Text: message})
}

func (c *Coordinator) OnTotalSentChanged(int, bool) {
	c.display.ShowHint(hint(c.local))
}

// HandleSelectChips mirrors the opponent's selection. The payload is
// re-clamped by the remote player before anything moves.
func (c *Coordinator) HandleSelectChips(chips []int) {
	if !c.acceptRemote("select_chips") {
		return
	}
	if !c.remote.SelectChips(chips) {
		c.logger.Debug("Ignored remote selection", "chips", intvec.String(chips))
	}
}

// HandleReturnChips mirrors the opponent returning chips to their bank.
func (c *Coordinator) HandleReturnChips(chips []int) {
	if !c.acceptRemote("return_chips") {
		return
	}
	if c.remote.ReturnChips(chips) == nil {
		c.logger.Debug("Ignored remote return", "chips", intvec.String(chips))
	}
}

// HandlePickedColor mirrors a color pick under the always-reveal policy.
func (c *Coordinator) HandlePickedColor(color betting.Color) {
	if !c.acceptRemote("picked_color") {
		return
	}
	c.remote.SetPickedColor(color)
}

// HandlePlacedBet records the opponent's bet.
func (c *Coordinator) HandlePlacedBet(bet betting.Bet) {
	if !c.acceptRemote("placed_bet") {
		return
	}
	if len(bet.Chips()) != c.remote.Pool().Len() {
		c.logger.Warn("Dropping malformed remote bet", "chips", intvec.String(bet.Chips()))
		return
	}
	if !bet.Color().Valid() {
		c.logger.Warn("Dropping remote bet without a color")
		return
	}
	if got, want := bet.Total(), c.remote.TotalSent(); got != want {
		c.logger.Warn("Remote bet disagrees with mirrored chips", "bet", got, "mirrored", want)
	}
	c.remote.MarkReady()
	c.addBet(&c.remoteBet, bet, msgOtherPlaced)
}

// HandleRoundReset re-enables local input once the opponent has reset.
func (c *Coordinator) HandleRoundReset() {
	if !c.acceptRemote("round_reset") {
		return
	}
	c.local.Unfreeze()
	c.logger.Debug("Opponent reset their round")
}

// HandleOutcome adopts an announced outcome. Only the first announcement
// of a round counts.
func (c *Coordinator) HandleOutcome(color betting.Color) {
	if !c.acceptRemote("outcome_announced") {
		return
	}
	if !color.Valid() {
		c.logger.Warn("Ignoring invalid outcome", "color", color)
		return
	}
	if c.outcome != betting.None {
		c.logger.Debug("Outcome already settled", "have", c.outcome, "announced", color)
		return
	}
	if c.cfg.Authority {
		c.logger.Warn("Authority received an outcome announcement", "color", color)
	}

	c.outcome = color
	c.logger.Info("Outcome announced", "color", color)
	c.display.ShowOutcome(color)
	if c.state == DeterminingOutcome {
		c.beginReveal()
	}
}

// HandlePlayerLeft abandons the round set after the opponent left.
func (c *Coordinator) HandlePlayerLeft() {
	if c.state == Aborted {
		return
	}
	c.display.ShowMessage(Notice{Text: msgOtherLeft})
	c.abort("opponent left")
}

// Leave tells the opponent the local player is leaving and abandons the
// round set.
func (c *Coordinator) Leave() {
	if c.state == Aborted {
		return
	}
	c.send("player_left", c.peer.PlayerLeft())
	c.display.ShowMessage(Notice{Text: msgLeaving})
	c.abort("local player left")
}

func (c *Coordinator) acceptRemote(kind string) bool {
	if c.state == Aborted {
		c.logger.Debug("Dropping message after abort", "type", kind)
		return false
	}
	return true
}

// addBet records a bet in its slot. A second bet from the same player
// replaces the first until the outcome is applied.
func (c *Coordinator) addBet(slot **betting.Bet, bet betting.Bet, waiting string) {
	if c.state == Aborted {
		return
	}
	if c.state > RevealDelay {
		c.logger.Warn("Bet arrived while resolving, dropping", "state", c.state, "color", bet.Color())
		return
	}
	if *slot != nil {
		c.logger.Warn("Replacing bet", "old", (*slot).String(), "new", bet.String())
	}
	*slot = &bet

	if c.localBet == nil || c.remoteBet == nil {
		c.display.ShowMessage(Notice{Text: waiting})
		return
	}
	if c.state == AwaitingBets {
		c.evaluate()
	}
}

func (c *Coordinator) evaluate() {
	c.state = DeterminingOutcome
	c.logger.Info("All bets placed",
		"local", c.localBet.String(),
		"remote", c.remoteBet.String())

	if c.cfg.RevealPolicy == AfterAllPlacedBet {
		c.remote.Reveal(c.remoteBet.Color())
	}

	if c.outcome != betting.None {
		c.beginReveal()
		return
	}
	if !c.cfg.Authority {
		c.logger.Debug("Waiting for the outcome announcement")
		return
	}

	c.outcome = randutil.Pick(c.rng, betting.Outcomes[:])
	c.logger.Info("Outcome drawn", "color", c.outcome)
	c.display.ShowOutcome(c.outcome)
	c.send("outcome_announced", c.peer.OutcomeAnnounced(c.outcome))
	c.beginReveal()
}

func (c *Coordinator) beginReveal() {
	c.state = RevealDelay
	c.wait = c.cfg.RevealPause
}

// resolve pays out both pools according to the outcome.
func (c *Coordinator) resolve() {
	c.state = Resolving

	localWins := c.localBet.Color() == c.outcome
	remoteWins := c.remoteBet.Color() == c.outcome
	staked := intvec.Sum(c.local.Pool().Projected())
	result := statistics.RoundResult{Staked: staked}

	var err error
	switch {
	case localWins == remoteWins:
		c.stats.Pushes++
		c.logger.Info("Round pushed", "outcome", c.outcome)
		err = errors.Join(
			c.transferAll(c.local.Pool(), c.local.Bank()),
			c.transferAll(c.remote.Pool(), c.remote.Bank()),
		)
	case localWins:
		c.stats.Wins++
		result.Net = intvec.Sum(c.remote.Pool().Projected())
		c.logger.Info("Local player wins the round", "outcome", c.outcome)
		err = errors.Join(
			c.transferAll(c.local.Pool(), c.local.Bank()),
			c.transferAll(c.remote.Pool(), c.local.Bank()),
		)
	default:
		c.stats.Losses++
		result.Net = -staked
		c.logger.Info("Remote player wins the round", "outcome", c.outcome)
		err = errors.Join(
			c.transferAll(c.remote.Pool(), c.remote.Bank()),
			c.transferAll(c.local.Pool(), c.remote.Bank()),
		)
	}
	c.results.Add(result)
	if err != nil {
		c.fail(fmt.Errorf("payout: %w", err))
	}
}

// transferAll moves the whole projected content of src into dst and counts
// it as pending until the completion callback fires.
func (c *Coordinator) transferAll(src, dst *chips.Engine) error {
	counts, err := src.EnqueueAll(dst, c.done)
	if err != nil {
		return err
	}
	if intvec.Sum(counts) > 0 {
		c.pending++
	}
	return nil
}

func (c *Coordinator) done(_, _ []int) { c.pending-- }

func (c *Coordinator) checkBankruptcy() {
	c.state = CheckBankruptcy

	switch {
	case !c.local.HasChips():
		c.winner, c.loser = c.remote, c.local
		c.display.ShowMessage(Notice{Text: msgYouLost, Level: Lost})
	case !c.remote.HasChips():
		c.winner, c.loser = c.local, c.remote
		c.display.ShowMessage(Notice{Text: msgYouWon, Level: Won})
	default:
		c.reset()
		return
	}

	c.logger.Info("Player is bankrupt", "player", c.loser.Name())
	c.state = BankruptcyNotice
	c.wait = c.cfg.BankruptcyPause
}

// restock moves a fresh starting bank from the winner into the bankrupt
// player's bank.
func (c *Coordinator) restock() {
	c.state = Restocking
	c.stats.Restocks++

	counts := intvec.Fill(c.loser.Bank().Len(), c.cfg.InitialChipsPerStack)
	if err := c.winner.Bank().Enqueue(counts, c.loser.Bank(), c.done); err != nil {
		c.fail(fmt.Errorf("restock %s: %w", c.loser.Name(), err))
		return
	}
	if intvec.Sum(counts) > 0 {
		c.pending++
	}
	c.logger.Info("Restocking", "player", c.loser.Name(), "chips", intvec.String(counts))
}

func (c *Coordinator) reset() {
	c.state = RoundReset

	c.localBet, c.remoteBet = nil, nil
	c.outcome = betting.None
	c.winner, c.loser = nil, nil
	c.stats.Rounds++

	c.local.RoundReset()
	c.remote.RoundReset()
	c.display.ShowOutcome(betting.None)
	c.send("round_reset", c.peer.RoundReset())

	c.logger.Info("Round reset", "round", c.stats.Rounds,
		"local", c.local.Holdings(), "remote", c.remote.Holdings())
	c.state = AwaitingBets
	c.display.ShowMessage(Notice{Text: msgPlaceBet})
}

func (c *Coordinator) abort(reason string) {
	c.logger.Warn("Aborting round set", "reason", reason, "state", c.state)
	c.local.Abort()
	c.remote.Abort()
	c.state = Aborted
	if err := c.results.Validate(); err != nil {
		c.logger.Error("Round results are inconsistent", "error", err)
	}
}

func (c *Coordinator) fail(err error) error {
	if c.err == nil {
		c.err = err
		c.logger.Error("Round failed", "state", c.state, "error", err)
	}
	return c.err
}

func (c *Coordinator) send(kind string, err error) {
	if err != nil {
		c.logger.Warn("Failed to notify peer", "type", kind, "error", err)
	}
}

func hint(p *betting.Player) string {
	need := p.Settings().ChipsRequiredToBet - p.TotalSent()
	if p.Ready() || need <= 0 {
		return ""
	}
	return fmt.Sprintf("Please place %d more chips", need)
}

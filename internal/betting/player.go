package betting

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/intvec"
)

// Settings are the per-round-set betting limits.
type Settings struct {
	MinChipsSent       int
	MaxChipsSent       int
	ChipsRequiredToBet int
}

// Listener receives a player's local input events. All methods are called
// from the goroutine that drives the player.
type Listener interface {
	OnSelectChips(chips []int)
	OnReturnChips(chips []int)
	OnPickedColor(color Color)
	OnReady(bet Bet)
	OnNotice(message string)
	OnTotalSentChanged(totalSent int, ready bool)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) OnSelectChips([]int)          {}
func (NopListener) OnReturnChips([]int)          {}
func (NopListener) OnPickedColor(Color)          {}
func (NopListener) OnReady(Bet)                  {}
func (NopListener) OnNotice(string)              {}
func (NopListener) OnTotalSentChanged(int, bool) {}

// Player is one participant's betting state: a bank and a bet pool, the
// running session total, the picked color and readiness.
type Player struct {
	name     string
	bank     *chips.Engine
	pool     *chips.Engine
	settings Settings
	logger   *log.Logger
	listener Listener

	totalSent int
	committed []int
	picked    Color
	ready     bool
	frozen    bool
}

// NewPlayer creates a player whose bank holds initial chips per stack and
// whose bet pool starts empty.
func NewPlayer(name string, cfg chips.Config, settings Settings, logger *log.Logger) *Player {
	poolCfg := cfg
	poolCfg.Initial = 0

	return &Player{
		name:      name,
		bank:      chips.NewEngine(name+".bank", cfg, logger),
		pool:      chips.NewEngine(name+".pool", poolCfg, logger),
		settings:  settings,
		logger:    logger.WithPrefix("player").With("player", name),
		listener:  NopListener{},
		committed: intvec.Zeros(len(cfg.Colors)),
	}
}

// SetListener routes local input events to l.
func (p *Player) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	p.listener = l
}

func (p *Player) Name() string        { return p.name }
func (p *Player) Bank() *chips.Engine { return p.bank }
func (p *Player) Pool() *chips.Engine { return p.pool }
func (p *Player) TotalSent() int      { return p.totalSent }
func (p *Player) PickedColor() Color  { return p.picked }
func (p *Player) Ready() bool         { return p.ready }
func (p *Player) Frozen() bool        { return p.frozen }
func (p *Player) Committed() []int    { return intvec.Copy(p.committed) }
func (p *Player) HasChips() bool      { return p.bank.Sum() > 0 }
func (p *Player) Holdings() int       { return intvec.Sum(p.bank.Projected()) + intvec.Sum(p.pool.Projected()) }
func (p *Player) Settings() Settings  { return p.settings }

// Tick advances both of the player's engines.
func (p *Player) Tick(dt time.Duration) error {
	if err := p.bank.Tick(dt); err != nil {
		return err
	}
	return p.pool.Tick(dt)
}

// Idle reports whether neither engine has transfers pending.
func (p *Player) Idle() bool { return p.bank.Idle() && p.pool.Idle() }

// Abort drops every pending transfer on both engines.
func (p *Player) Abort() {
	p.bank.Abort()
	p.pool.Abort()
}

// SelectChips moves a processed selection from the bank into the bet pool.
// It is rejected outright once the session cap is reached or the bet is
// final. The result reports whether any chip was committed.
func (p *Player) SelectChips(requested []int) bool {
	_, ok := p.selectChips(requested)
	return ok
}

func (p *Player) selectChips(requested []int) ([]int, bool) {
	s := p.settings
	if p.ready || p.totalSent >= s.MaxChipsSent {
		return nil, false
	}

	processed := ProcessSelection(requested, s.MinChipsSent, s.MaxChipsSent, p.totalSent)
	clampTo(processed, available(p.bank))
	sum := intvec.Sum(processed)
	if sum == 0 {
		return nil, false
	}

	if err := p.bank.Enqueue(processed, p.pool, nil); err != nil {
		p.logger.Error("Rejected selection transfer", "chips", intvec.String(processed), "error", err)
		return nil, false
	}
	p.totalSent += sum
	for i, n := range processed {
		p.committed[i] += n
	}

	p.logger.Debug("Selected chips", "chips", intvec.String(processed), "totalSent", p.totalSent)
	p.listener.OnTotalSentChanged(p.totalSent, p.ready)
	return processed, true
}

// ReturnChips moves chips from the bet pool back to the bank and returns the
// amounts actually moved. It is a no-op when nothing has been sent.
func (p *Player) ReturnChips(requested []int) []int {
	if p.ready || p.totalSent <= 0 {
		return nil
	}

	clamped := intvec.Zeros(p.pool.Len())
	copy(clamped, requested)
	clampTo(clamped, p.committed)
	clampTo(clamped, available(p.pool))
	sum := intvec.Sum(clamped)
	if sum == 0 {
		return nil
	}

	if err := p.pool.Enqueue(clamped, p.bank, nil); err != nil {
		p.logger.Error("Rejected return transfer", "chips", intvec.String(clamped), "error", err)
		return nil
	}
	p.totalSent = max(p.totalSent-min(sum, p.totalSent), 0)
	for i, n := range clamped {
		p.committed[i] -= n
	}

	p.logger.Debug("Returned chips", "chips", intvec.String(clamped), "totalSent", p.totalSent)
	p.listener.OnTotalSentChanged(p.totalSent, p.ready)
	return clamped
}

// Select is the local-input path for SelectChips. Frozen players ignore it;
// accepted selections are reported to the listener.
func (p *Player) Select(requested []int) bool {
	if p.frozen {
		return false
	}
	processed, ok := p.selectChips(requested)
	if ok {
		p.listener.OnSelectChips(processed)
	}
	return ok
}

// Return is the local-input path for ReturnChips.
func (p *Player) Return(requested []int) bool {
	if p.frozen {
		return false
	}
	moved := p.ReturnChips(requested)
	if moved == nil {
		return false
	}
	p.listener.OnReturnChips(moved)
	return true
}

// SetPickedColor changes the displayed prediction. A finalized bet's color
// cannot change.
func (p *Player) SetPickedColor(color Color) {
	if p.ready {
		return
	}
	p.picked = color
}

// PickColor is the local-input path for SetPickedColor. Frozen players
// ignore it, as they do Select and Return.
func (p *Player) PickColor(color Color) {
	if p.ready || p.frozen {
		return
	}
	p.SetPickedColor(color)
	p.listener.OnPickedColor(color)
}

// TrySetReady finalizes the bet once enough chips are committed and a color
// is picked. It is the only producer of Bet values and does nothing once the
// player is ready.
func (p *Player) TrySetReady() bool {
	if p.ready {
		return false
	}

	required := p.settings.ChipsRequiredToBet
	if p.totalSent < required {
		p.listener.OnNotice(fmt.Sprintf("Please place %d more chips", required-p.totalSent))
		return false
	}
	if p.picked == None {
		p.listener.OnNotice("Please pick a color")
		return false
	}

	p.ready = true
	p.frozen = true
	bet := NewBet(p.picked, p.committed)

	p.logger.Info("Bet placed", "color", bet.Color(), "chips", intvec.String(bet.Chips()))
	p.listener.OnTotalSentChanged(p.totalSent, p.ready)
	p.listener.OnReady(bet)
	return true
}

// MarkReady finalizes a mirrored player once its owner announced a bet.
// The picked color is left untouched; Reveal shows it when allowed.
func (p *Player) MarkReady() {
	p.ready = true
	p.listener.OnTotalSentChanged(p.totalSent, p.ready)
}

// Reveal sets the color of a finalized mirrored bet.
func (p *Player) Reveal(color Color) { p.picked = color }

// Unfreeze re-enables local input after the opponent has reset.
func (p *Player) Unfreeze() { p.frozen = false }

// RoundReset clears the per-round state so a new bet can be built.
func (p *Player) RoundReset() {
	p.ready = false
	p.totalSent = 0
	p.committed = intvec.Zeros(p.pool.Len())
	p.picked = None

	p.bank.Reset()
	p.pool.Reset()
	if err := p.pool.SetSelectionMask(p.pool.Projected()); err != nil {
		p.logger.Error("Failed to mask carried-over chips", "error", err)
	}

	p.listener.OnTotalSentChanged(p.totalSent, p.ready)
}

// available returns per-stack chips above the selection mask once every
// queued transfer has landed.
func available(e *chips.Engine) []int {
	out := make([]int, e.Len())
	for i := range out {
		out[i] = e.Selectable(i)
	}
	return out
}

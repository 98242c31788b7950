// Package bot plays a round set without a human: it builds a legal bet from
// whatever the bank holds and picks a random color.
package bot

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/intvec"
	"github.com/lox/colorbets/internal/round"
	"github.com/lox/colorbets/internal/session"
)

// ErrNoLegalBet is returned by Plan when the bank cannot cover the bet.
var ErrNoLegalBet = errors.New("bot: no legal bet from this bank")

// Controller is the part of a session the bot drives.
type Controller interface {
	Snapshots() <-chan session.Snapshot
	Done() <-chan struct{}
	SelectChips(chips []int) error
	PickColor(color betting.Color) error
	Ready() error
}

// Plan is one round's decision.
type Plan struct {
	Chips []int
	Color betting.Color
}

// NewPlan spreads the chips still needed for a bet across the bank's stacks
// in random order. Every entry respects the per-stack limits, so the
// selection passes through ProcessSelection unchanged.
func NewPlan(view round.PlayerView, s betting.Settings, rng *rand.Rand) (Plan, error) {
	need := s.ChipsRequiredToBet - view.TotalSent
	room := s.MaxChipsSent - view.TotalSent
	sel := intvec.Zeros(len(view.Bank))

	for _, i := range rng.Perm(len(view.Bank)) {
		if need <= 0 {
			break
		}
		n := min(view.Bank[i].Count, max(need, s.MinChipsSent), room, s.MaxChipsSent)
		if n <= 0 || n < s.MinChipsSent {
			continue
		}
		sel[i] = n
		need -= n
		room -= n
	}
	if need > 0 {
		return Plan{}, fmt.Errorf("%w: %d chips short", ErrNoLegalBet, need)
	}
	if got := betting.ProcessSelection(sel, s.MinChipsSent, s.MaxChipsSent, view.TotalSent); !intvec.Equal(got, sel) {
		return Plan{}, fmt.Errorf("%w: selection %s clamped to %s", ErrNoLegalBet, intvec.String(sel), intvec.String(got))
	}

	return Plan{Chips: sel, Color: betting.Outcomes[rng.IntN(len(betting.Outcomes))]}, nil
}

// Options configure a Driver.
type Options struct {
	Settings betting.Settings
	// ThinkTime delays each bet so a human opponent can follow along.
	ThinkTime time.Duration
	Clock     quartz.Clock
	Rand      *rand.Rand
	Logger    *log.Logger
}

// Driver bets once per round on behalf of the local player.
type Driver struct {
	ctrl     Controller
	settings betting.Settings
	think    time.Duration
	clock    quartz.Clock
	rng      *rand.Rand
	logger   *log.Logger

	lastRound int
}

// NewDriver creates a driver for ctrl.
func NewDriver(ctrl Controller, opts Options) *Driver {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		ctrl:      ctrl,
		settings:  opts.Settings,
		think:     opts.ThinkTime,
		clock:     clock,
		rng:       rng,
		logger:    logger.WithPrefix("bot"),
		lastRound: -1,
	}
}

// Run bets until the session ends or ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.ctrl.Done():
			return nil
		case snap := <-d.ctrl.Snapshots():
			if !d.canAct(snap) {
				continue
			}
			d.lastRound = snap.Stats.Rounds
			if err := d.pause(ctx); err != nil {
				return err
			}
			if err := d.act(snap); err != nil {
				if errors.Is(err, session.ErrClosed) {
					return nil
				}
				d.logger.Warn("Skipping round", "round", snap.Stats.Rounds, "error", err)
			}
		}
	}
}

func (d *Driver) canAct(snap session.Snapshot) bool {
	me := snap.Local
	return snap.State == round.AwaitingBets &&
		snap.Stats.Rounds != d.lastRound &&
		!me.Ready && !me.Frozen && !me.Moving
}

func (d *Driver) pause(ctx context.Context) error {
	if d.think <= 0 {
		return nil
	}
	timer := d.clock.NewTimer(d.think, "bot", "think")
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctrl.Done():
		return nil
	}
}

func (d *Driver) act(snap session.Snapshot) error {
	plan, err := NewPlan(snap.Local, d.settings, d.rng)
	if err != nil {
		return err
	}

	d.logger.Info("Betting", "round", snap.Stats.Rounds, "color", plan.Color, "chips", intvec.String(plan.Chips))
	if intvec.Sum(plan.Chips) > 0 {
		if err := d.ctrl.SelectChips(plan.Chips); err != nil {
			return err
		}
	}
	if err := d.ctrl.PickColor(plan.Color); err != nil {
		return err
	}
	return d.ctrl.Ready()
}

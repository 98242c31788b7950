package round

import (
	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/statistics"
)

// PlayerView is a read-only copy of a player's visible state.
type PlayerView struct {
	Name      string
	Bank      []chips.Stack
	Pool      []chips.Stack
	TotalSent int
	Committed []int
	Picked    betting.Color
	Ready     bool
	Frozen    bool
	Moving    bool
}

// Snapshot is a copy of everything a front end needs to draw a frame.
type Snapshot struct {
	State     State
	Outcome   betting.Color
	Authority bool
	Local     PlayerView
	Remote    PlayerView
	Stats     Stats
	Results   statistics.Summary
}

// Snapshot copies the current coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		State:     c.state,
		Outcome:   c.outcome,
		Authority: c.cfg.Authority,
		Local:     view(c.local),
		Remote:    view(c.remote),
		Stats:     c.stats,
		Results:   c.results.Summary(),
	}
}

func view(p *betting.Player) PlayerView {
	return PlayerView{
		Name:      p.Name(),
		Bank:      p.Bank().Stacks(),
		Pool:      p.Pool().Stacks(),
		TotalSent: p.TotalSent(),
		Committed: p.Committed(),
		Picked:    p.PickedColor(),
		Ready:     p.Ready(),
		Frozen:    p.Frozen(),
		Moving:    !p.Idle(),
	}
}

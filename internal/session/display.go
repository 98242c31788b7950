package session

import (
	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/round"
)

// display records the latest coordinator output for snapshots and passes
// it on to an optional front end display.
type display struct {
	next    round.Display
	message round.Notice
	hint    string
}

func (d *display) ShowMessage(n round.Notice) {
	d.message = n
	if d.next != nil {
		d.next.ShowMessage(n)
	}
}

func (d *display) ShowHint(text string) {
	d.hint = text
	if d.next != nil {
		d.next.ShowHint(text)
	}
}

func (d *display) ShowOutcome(color betting.Color) {
	if d.next != nil {
		d.next.ShowOutcome(color)
	}
}

package round

import "github.com/lox/colorbets/internal/betting"

// Peer delivers local events to the opponent. Implementations must not
// block the caller.
type Peer interface {
	SelectChips(chips []int) error
	ReturnChips(chips []int) error
	PickedColor(color betting.Color) error
	PlacedBet(bet betting.Bet) error
	RoundReset() error
	OutcomeAnnounced(color betting.Color) error
	PlayerLeft() error
}

// Level classifies a notice for display.
type Level int

const (
	Info Level = iota
	Lost
	Won
)

// Notice is a state message for the local player.
type Notice struct {
	Text  string
	Level Level
}

// Display shows coordinator output. Rendering itself lives elsewhere.
type Display interface {
	ShowMessage(n Notice)
	ShowHint(text string)
	ShowOutcome(color betting.Color)
}

// NopDisplay discards everything.
type NopDisplay struct{}

func (NopDisplay) ShowMessage(Notice)        {}
func (NopDisplay) ShowHint(string)           {}
func (NopDisplay) ShowOutcome(betting.Color) {}

const (
	msgPlaceBet     = "Please place a bet"
	msgWaitingOther = "Waiting for other players to place a bet"
	msgOtherPlaced  = "The other player placed a bet. Please make your move"
	msgYouLost      = "You lost"
	msgYouWon       = "Congratulations! You won!"
	msgOtherLeft    = "The other player left the game"
	msgLeaving      = "Leaving the game"
)

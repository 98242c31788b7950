package round

import (
	"fmt"
	"strings"
)

// State is a step of the round resolution state machine.
type State int

const (
	AwaitingBets State = iota
	DeterminingOutcome
	RevealDelay
	Resolving
	CheckBankruptcy
	BankruptcyNotice
	Restocking
	RoundReset
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingBets:
		return "awaiting_bets"
	case DeterminingOutcome:
		return "determining_outcome"
	case RevealDelay:
		return "reveal_delay"
	case Resolving:
		return "resolving"
	case CheckBankruptcy:
		return "check_bankruptcy"
	case BankruptcyNotice:
		return "bankruptcy_notice"
	case Restocking:
		return "restocking"
	case RoundReset:
		return "round_reset"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RevealPolicy controls when the opponent's picked color is shown locally.
// It never affects payouts.
type RevealPolicy int

const (
	// AfterAllPlacedBet reveals the opponent's color once both bets are in.
	AfterAllPlacedBet RevealPolicy = iota
	// Always mirrors every color pick to the opponent as it happens.
	Always
)

func (p RevealPolicy) String() string {
	if p == Always {
		return "always"
	}
	return "after_all_placed_bet"
}

// ParseRevealPolicy parses "always" or "after_all_placed_bet".
func ParseRevealPolicy(s string) (RevealPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return Always, nil
	case "after_all_placed_bet", "after-all-placed-bet", "":
		return AfterAllPlacedBet, nil
	default:
		return AfterAllPlacedBet, fmt.Errorf("unknown reveal policy %q", s)
	}
}

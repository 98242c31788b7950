package betting

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lox/colorbets/internal/intvec"
)

// Color is an outcome color a player can bet on.
type Color int

const (
	None Color = iota
	Red
	Green
)

// Outcomes lists the colors a round can resolve to.
var Outcomes = [...]Color{Red, Green}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	default:
		return "none"
	}
}

// Valid reports whether c is a drawable outcome color.
func (c Color) Valid() bool { return c == Red || c == Green }

// ParseColor parses a color name, case-insensitively.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "none", "":
		return None, nil
	default:
		return None, fmt.Errorf("unknown color %q", s)
	}
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Bet is an immutable record of one player's wager for a round.
type Bet struct {
	color Color
	chips []int
}

// NewBet creates a bet, copying chips.
func NewBet(color Color, chips []int) Bet {
	return Bet{color: color, chips: intvec.Copy(chips)}
}

// Color returns the predicted outcome color.
func (b Bet) Color() Color { return b.color }

// Chips returns a copy of the per-stack chips committed.
func (b Bet) Chips() []int { return intvec.Copy(b.chips) }

// Total returns the number of chips committed.
func (b Bet) Total() int { return intvec.Sum(b.chips) }

func (b Bet) String() string {
	return fmt.Sprintf("%s %s", b.color, intvec.String(b.chips))
}

type betJSON struct {
	Color Color `json:"color"`
	Chips []int `json:"chips"`
}

func (b Bet) MarshalJSON() ([]byte, error) {
	return json.Marshal(betJSON{Color: b.color, Chips: b.chips})
}

func (b *Bet) UnmarshalJSON(data []byte) error {
	var raw betJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Color.Valid() {
		return fmt.Errorf("bet color must be red or green, got %s", raw.Color)
	}
	for i, n := range raw.Chips {
		if n < 0 {
			return fmt.Errorf("bet stack %d has negative chips", i)
		}
	}
	*b = NewBet(raw.Color, raw.Chips)
	return nil
}

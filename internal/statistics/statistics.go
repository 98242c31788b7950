// Package statistics summarizes a player's net chip results over a round
// set.
package statistics

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// RoundResult is one resolved round from the local player's side.
type RoundResult struct {
	Net    int // chips won (positive) or lost (negative)
	Staked int // chips the local player had in the pool
}

// Statistics accumulates round results. The zero value is ready to use.
type Statistics struct {
	Rounds int
	Sum    float64
	Sum2   float64 // sum of squares for variance

	counts map[int]int // rounds per net result

	Wins   int
	Losses int
	Pushes int
	Staked int

	BiggestWin  int
	BiggestLoss int // most negative net, zero or below

	streak         int // positive for wins in a row, negative for losses
	LongestWinRun  int
	LongestLossRun int
}

// Add incorporates a round result.
func (s *Statistics) Add(r RoundResult) {
	net := float64(r.Net)
	s.Rounds++
	s.Sum += net
	s.Sum2 += net * net
	if s.counts == nil {
		s.counts = make(map[int]int)
	}
	s.counts[r.Net]++
	s.Staked += r.Staked

	switch {
	case r.Net > 0:
		s.Wins++
		s.streak = max(s.streak, 0) + 1
		s.LongestWinRun = max(s.LongestWinRun, s.streak)
	case r.Net < 0:
		s.Losses++
		s.streak = min(s.streak, 0) - 1
		s.LongestLossRun = max(s.LongestLossRun, -s.streak)
	default:
		s.Pushes++
		s.streak = 0
	}
	s.BiggestWin = max(s.BiggestWin, r.Net)
	s.BiggestLoss = min(s.BiggestLoss, r.Net)
}

// Net returns the total chips won or lost.
func (s *Statistics) Net() int { return int(s.Sum) }

// Mean returns the average net chips per round.
func (s *Statistics) Mean() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.Sum / float64(s.Rounds)
}

// Variance returns the sample variance of the per-round results.
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.Mean()
	return max((s.Sum2-float64(s.Rounds)*mean*mean)/float64(s.Rounds-1), 0)
}

// StdDev returns the sample standard deviation.
func (s *Statistics) StdDev() float64 { return math.Sqrt(s.Variance()) }

// StdError returns the standard error of the mean.
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean.
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// WinRate returns the share of decided rounds that were won.
func (s *Statistics) WinRate() float64 {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return 0
	}
	return float64(s.Wins) / float64(decided)
}

// Median returns the median per-round result.
func (s *Statistics) Median() float64 {
	if s.Rounds == 0 {
		return 0
	}
	nets := slices.Sorted(maps.Keys(s.counts))

	// nth returns the n-th smallest result, counting from zero.
	nth := func(n int) int {
		for _, net := range nets {
			if n < s.counts[net] {
				return net
			}
			n -= s.counts[net]
		}
		return 0
	}
	if s.Rounds%2 == 0 {
		return float64(nth(s.Rounds/2-1)+nth(s.Rounds/2)) / 2
	}
	return float64(nth(s.Rounds / 2))
}

// Validate checks that the counters agree with each other.
func (s *Statistics) Validate() error {
	if s.Wins+s.Losses+s.Pushes != s.Rounds {
		return fmt.Errorf("wins %d + losses %d + pushes %d != rounds %d", s.Wins, s.Losses, s.Pushes, s.Rounds)
	}
	rounds, total := 0, 0
	for net, n := range s.counts {
		rounds += n
		total += net * n
	}
	if rounds != s.Rounds {
		return fmt.Errorf("recorded results (%d) do not match rounds (%d)", rounds, s.Rounds)
	}
	if float64(total) != s.Sum {
		return fmt.Errorf("ledger mismatch: results total %d, sum %.0f", total, s.Sum)
	}
	return nil
}

// Summary is a copy of the headline figures, safe to hand to other
// goroutines.
type Summary struct {
	Rounds      int
	Net         int
	Mean        float64
	Median      float64
	Staked      int
	CILow       float64
	CIHigh      float64
	WinRate     float64
	BiggestWin  int
	BiggestLoss int
	WinStreak   int
	LossStreak  int
}

// Summary returns the headline figures.
func (s *Statistics) Summary() Summary {
	lo, hi := s.ConfidenceInterval95()
	return Summary{
		Rounds:      s.Rounds,
		Net:         s.Net(),
		Mean:        s.Mean(),
		Median:      s.Median(),
		Staked:      s.Staked,
		CILow:       lo,
		CIHigh:      hi,
		WinRate:     s.WinRate(),
		BiggestWin:  s.BiggestWin,
		BiggestLoss: s.BiggestLoss,
		WinStreak:   s.LongestWinRun,
		LossStreak:  s.LongestLossRun,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("net %+d over %d rounds, %+.2f/round (95%% CI %+.2f..%+.2f, median %+.1f), win rate %.0f%%, %d staked",
		s.Net, s.Rounds, s.Mean, s.CILow, s.CIHigh, s.Median, 100*s.WinRate, s.Staked)
}

// Package config loads the round-set settings shared by both players.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/joho/godotenv"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/chips"
	"github.com/lox/colorbets/internal/round"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "COLORBETS_"

// DefaultColors is the stack palette, one color per stack.
var DefaultColors = []string{
	"black", "blue", "cyan", "gray", "green",
	"magenta", "red", "white", "yellow", "lavender",
}

// Config holds the round-set settings. Durations are Go duration strings
// so the same value works in HCL and in the environment.
type Config struct {
	NumberOfStacks          int      `hcl:"number_of_stacks,optional" env:"NUMBER_OF_STACKS"`
	InitialChipsPerStack    int      `hcl:"initial_chips_per_stack,optional" env:"INITIAL_CHIPS_PER_STACK"`
	MinChipsSent            int      `hcl:"min_chips_sent,optional" env:"MIN_CHIPS_SENT"`
	MaxChipsSent            int      `hcl:"max_chips_sent,optional" env:"MAX_CHIPS_SENT"`
	ChipsRequiredToBet      int      `hcl:"chips_required_to_bet,optional" env:"CHIPS_REQUIRED_TO_BET"`
	RevealPolicy            string   `hcl:"reveal_policy,optional" env:"REVEAL_POLICY"`
	DisplayPickedColorPause string   `hcl:"display_picked_color_pause,optional" env:"DISPLAY_PICKED_COLOR_PAUSE"`
	ChipsFlySpeed           float64  `hcl:"chips_fly_speed,optional" env:"CHIPS_FLY_SPEED"`
	BankruptcyPause         string   `hcl:"bankruptcy_pause,optional" env:"BANKRUPTCY_PAUSE"`
	StackColors             []string `hcl:"stack_colors,optional" env:"STACK_COLORS" envSeparator:","`
	TickRate                int      `hcl:"tick_rate,optional" env:"TICK_RATE"`
	LogLevel                string   `hcl:"log_level,optional" env:"LOG_LEVEL"`
	Seed                    int64    `hcl:"seed,optional" env:"SEED"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		NumberOfStacks:          10,
		InitialChipsPerStack:    10,
		MinChipsSent:            1,
		MaxChipsSent:            10,
		ChipsRequiredToBet:      10,
		RevealPolicy:            round.AfterAllPlacedBet.String(),
		DisplayPickedColorPause: "1s",
		ChipsFlySpeed:           30,
		BankruptcyPause:         "3s",
		StackColors:             append([]string(nil), DefaultColors...),
		TickRate:                60,
		LogLevel:                "info",
	}
}

// Sources names where configuration is read from. Empty fields are skipped.
type Sources struct {
	File   string
	DotEnv string
	// Environment replaces the process environment when set.
	Environment map[string]string
}

// Load applies defaults, then the HCL file, then the .env file, then the
// environment, and validates the result.
func Load(src Sources) (*Config, error) {
	cfg, err := LoadFile(src.File)
	if err != nil {
		return nil, err
	}

	environ := src.Environment
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	if src.DotEnv != "" {
		if environ, err = mergeDotEnv(src.DotEnv, environ); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadFile(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	// attributes absent from the file keep their defaults
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	return cfg, nil
}

// mergeDotEnv adds variables from a .env file that the environment does not
// already set. A missing file is ignored.
func mergeDotEnv(filename string, environ map[string]string) (map[string]string, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return environ, nil
	}
	vars, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	merged := make(map[string]string, len(environ)+len(vars))
	for k, v := range vars {
		merged[k] = v
	}
	for k, v := range environ {
		merged[k] = v
	}
	return merged, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NumberOfStacks < 1 {
		return fmt.Errorf("number_of_stacks must be at least 1, got %d", c.NumberOfStacks)
	}
	if c.NumberOfStacks > len(c.StackColors) {
		return fmt.Errorf("number_of_stacks (%d) exceeds available stack colors (%d)",
			c.NumberOfStacks, len(c.StackColors))
	}
	if c.InitialChipsPerStack < 0 {
		return fmt.Errorf("initial_chips_per_stack cannot be negative: %d", c.InitialChipsPerStack)
	}
	if c.MinChipsSent < 0 {
		return fmt.Errorf("min_chips_sent cannot be negative: %d", c.MinChipsSent)
	}
	if c.MaxChipsSent < c.MinChipsSent {
		return fmt.Errorf("max_chips_sent (%d) must be >= min_chips_sent (%d)", c.MaxChipsSent, c.MinChipsSent)
	}
	if c.ChipsRequiredToBet < 1 {
		return fmt.Errorf("chips_required_to_bet must be at least 1, got %d", c.ChipsRequiredToBet)
	}
	if c.ChipsRequiredToBet > c.MaxChipsSent {
		return fmt.Errorf("chips_required_to_bet (%d) exceeds max_chips_sent (%d)", c.ChipsRequiredToBet, c.MaxChipsSent)
	}
	if _, err := round.ParseRevealPolicy(c.RevealPolicy); err != nil {
		return err
	}
	if c.ChipsFlySpeed <= 0 {
		return fmt.Errorf("chips_fly_speed must be positive, got %g", c.ChipsFlySpeed)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	for name, v := range map[string]string{
		"display_picked_color_pause": c.DisplayPickedColorPause,
		"bankruptcy_pause":           c.BankruptcyPause,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", name, v)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Colors returns the colors of the configured stacks.
func (c *Config) Colors() []string {
	n := min(c.NumberOfStacks, len(c.StackColors))
	return append([]string(nil), c.StackColors[:n]...)
}

// ChipsConfig returns the stack group shape for both players' engines. A
// stack can hold every chip of its color in play.
func (c *Config) ChipsConfig() chips.Config {
	return chips.Config{
		Colors:   c.Colors(),
		Initial:  c.InitialChipsPerStack,
		Capacity: 2 * c.InitialChipsPerStack,
		Speed:    c.ChipsFlySpeed,
	}
}

// Settings returns the betting limits.
func (c *Config) Settings() betting.Settings {
	return betting.Settings{
		MinChipsSent:       c.MinChipsSent,
		MaxChipsSent:       c.MaxChipsSent,
		ChipsRequiredToBet: c.ChipsRequiredToBet,
	}
}

// RoundConfig returns the round resolution settings.
func (c *Config) RoundConfig(authority bool) round.Config {
	policy, _ := round.ParseRevealPolicy(c.RevealPolicy)
	return round.Config{
		RevealPolicy:         policy,
		RevealPause:          parseDuration(c.DisplayPickedColorPause, time.Second),
		BankruptcyPause:      parseDuration(c.BankruptcyPause, 3*time.Second),
		InitialChipsPerStack: c.InitialChipsPerStack,
		Authority:            authority,
	}
}

// TickInterval returns the simulation step.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(max(c.TickRate, 1))
}

// Fingerprint digests the settings both players must agree on. Cosmetic
// settings are left out.
func (c *Config) Fingerprint() string {
	policy, _ := round.ParseRevealPolicy(c.RevealPolicy)
	canonical := fmt.Sprintf("stacks=%d;initial=%d;min=%d;max=%d;required=%d;reveal=%s",
		c.NumberOfStacks, c.InitialChipsPerStack, c.MinChipsSent,
		c.MaxChipsSent, c.ChipsRequiredToBet, policy)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}

// HCL renders the configuration as an HCL document.
func (c *Config) HCL() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(c, f.Body())
	return f.Bytes()
}

// String returns a one-line summary for logs.
func (c *Config) String() string {
	return fmt.Sprintf("%d stacks x %d chips, bet %d (min %d, max %d), reveal %s",
		c.NumberOfStacks, c.InitialChipsPerStack, c.ChipsRequiredToBet,
		c.MinChipsSent, c.MaxChipsSent, strings.ToLower(c.RevealPolicy))
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

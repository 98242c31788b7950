package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/colorbets/internal/bot"
	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/peer"
	"github.com/lox/colorbets/internal/randutil"
	"github.com/lox/colorbets/internal/session"
	"github.com/lox/colorbets/internal/tui"
)

// ConfigFlags select the configuration sources.
type ConfigFlags struct {
	Config  string `short:"c" default:"colorbets.hcl" help:"Path to HCL configuration file"`
	EnvFile string `default:".env" help:"Path to a .env file with COLORBETS_* overrides"`
	Seed    *int64 `help:"Deterministic outcome seed (host only)"`
}

// load reads every configuration source and applies flag overrides last.
func (f ConfigFlags) load(logLevel string) (*config.Config, error) {
	cfg, err := config.Load(config.Sources{File: f.Config, DotEnv: f.EnvFile})
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if f.Seed != nil {
		cfg.Seed = *f.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PlayFlags are shared by host and join.
type PlayFlags struct {
	ConfigFlags
	Name      string        `short:"n" help:"Display name (defaults to $USER)"`
	Bot       bool          `help:"Let the built-in bot play instead of the terminal UI"`
	ThinkTime time.Duration `default:"750ms" help:"Bot delay before each bet"`
	LogLevel  string        `short:"l" help:"Log level (overrides config)"`
	LogFile   string        `default:"colorbets.log" help:"Log file used while the terminal UI is up"`
	NoColor   bool          `help:"Disable colors (also set by NO_COLOR)"`
}

func (f PlayFlags) playerName() string {
	if f.Name != "" {
		return f.Name
	}
	return os.Getenv("USER")
}

// setupLogger writes to stderr for bots and to the log file under the UI,
// which owns the terminal.
func (f PlayFlags) setupLogger(level log.Level) (*log.Logger, io.Closer, error) {
	if f.Bot {
		logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, ReportTimestamp: true})
		return logger, io.NopCloser(nil), nil
	}

	file, err := os.OpenFile(f.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.NewWithOptions(file, log.Options{Level: level, ReportTimestamp: true})
	return logger, file, nil
}

type connectFunc func(ctx context.Context, cfg *config.Config, logger *log.Logger) (peer.Transport, error)

// run loads configuration, sets up logging, connects and plays. Interrupts
// make the local player leave.
func (f PlayFlags) run(authority bool, connect connectFunc) error {
	cfg, err := f.load(f.LogLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := f.setupLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting colorbets", "version", version, "authority", authority,
		"config", f.Config, "settings", cfg.String())

	transport, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect", "error", err)
		return err
	}
	return f.play(ctx, cfg, transport, authority, logger)
}

// play runs a round set over transport until someone leaves.
func (f PlayFlags) play(ctx context.Context, cfg *config.Config, transport peer.Transport, authority bool, logger *log.Logger) error {
	sess, err := session.New(session.Options{
		Config:    cfg,
		Transport: transport,
		Authority: authority,
		Name:      f.playerName(),
		Logger:    logger,
	})
	if err != nil {
		_ = transport.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sess.Run(gctx)
		if errors.Is(err, session.ErrPeerLeft) {
			logger.Info("Opponent left, round set over")
			return nil
		}
		return err
	})

	if f.Bot {
		driver := bot.NewDriver(sess, bot.Options{
			Settings:  cfg.Settings(),
			ThinkTime: f.ThinkTime,
			Rand:      randutil.New(time.Now().UnixNano()),
			Logger:    logger,
		})
		g.Go(func() error { return driver.Run(gctx) })
	} else {
		model := tui.NewModel(sess, logger, tui.Options{Colors: cfg.Colors(), Plain: f.NoColor || os.Getenv("NO_COLOR") != ""})
		g.Go(func() error { return tui.Run(gctx, model) })
	}

	err = g.Wait()
	snap := sess.Snapshot()
	logger.Info("Round set summary", "rounds", snap.Stats.Rounds, "won", snap.Stats.Wins,
		"lost", snap.Stats.Losses, "pushed", snap.Stats.Pushes, "restocks", snap.Stats.Restocks,
		"results", snap.Results.String())

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

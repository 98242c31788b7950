package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/colorbets/internal/bot"
	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/peer"
	"github.com/lox/colorbets/internal/randutil"
	"github.com/lox/colorbets/internal/session"
)

// PracticeCmd plays against the built-in bot without any network.
type PracticeCmd struct {
	PlayFlags
	Opponent string `default:"bot" help:"Name shown for the bot opponent"`
}

func (c *PracticeCmd) Run() error {
	return c.run(true, func(ctx context.Context, cfg *config.Config, logger *log.Logger) (peer.Transport, error) {
		local, remote := peer.Pipe()
		if err := startOpponent(ctx, cfg, remote, c.Opponent, c.ThinkTime, logger); err != nil {
			_ = local.Close()
			return nil, err
		}
		return local, nil
	})
}

// startOpponent runs a bot-driven guest session on transport in the
// background. It ends when the local player leaves.
func startOpponent(ctx context.Context, cfg *config.Config, transport peer.Transport, name string, think time.Duration, logger *log.Logger) error {
	logger = logger.With("opponent", name)
	sess, err := session.New(session.Options{
		Config:    cfg,
		Transport: transport,
		Name:      name,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	driver := bot.NewDriver(sess, bot.Options{
		Settings:  cfg.Settings(),
		ThinkTime: think,
		Rand:      randutil.New(time.Now().UnixNano()),
		Logger:    logger,
	})

	go func() {
		if err := sess.Run(ctx); err != nil {
			logger.Debug("Practice opponent stopped", "error", err)
		}
	}()
	go func() { _ = driver.Run(ctx) }()
	return nil
}

package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/peer"
)

// JoinCmd joins a hosted round set.
type JoinCmd struct {
	PlayFlags
	Target  string        `arg:"" help:"Host address, e.g. localhost:7777 or ws://host:7777/ws"`
	Timeout time.Duration `default:"10s" help:"Connection timeout"`
}

func (c *JoinCmd) Run() error {
	return c.run(false, func(ctx context.Context, _ *config.Config, logger *log.Logger) (peer.Transport, error) {
		dialCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		logger.Info("Joining round set", "target", c.Target)
		return peer.Dial(dialCtx, c.Target, logger)
	})
}

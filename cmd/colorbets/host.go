package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/peer"
)

// HostCmd hosts a round set. The host draws every outcome.
type HostCmd struct {
	PlayFlags
	Addr string `short:"a" default:":7777" help:"Address to listen on"`
}

func (c *HostCmd) Run() error {
	return c.run(true, func(ctx context.Context, _ *config.Config, logger *log.Logger) (peer.Transport, error) {
		// the host outlives an interrupt until the farewell is flushed
		host, err := peer.Listen(context.WithoutCancel(ctx), c.Addr, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Waiting for an opponent", "addr", host.Addr())
		if !c.Bot {
			fmt.Fprintf(os.Stderr, "Waiting for an opponent on %s ...\n", host.Addr())
		}

		transport, err := host.Accept(ctx)
		if err != nil {
			_ = host.Close()
			return nil, err
		}
		go func() {
			<-transport.Done()
			_ = host.Close()
		}()
		return transport, nil
	})
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/fileutil"
)

// ConfigCmd prints the configuration both players would use.
type ConfigCmd struct {
	ConfigFlags
	Defaults    bool   `help:"Print the built-in defaults, ignoring every source"`
	Fingerprint bool   `help:"Print only the gameplay fingerprint compared at handshake"`
	Write       string `short:"w" placeholder:"PATH" help:"Write the configuration to PATH instead of stdout"`
	Force       bool   `help:"Overwrite PATH if it exists"`
}

func (c *ConfigCmd) Run() error {
	cfg := config.Default()
	if !c.Defaults {
		var err error
		if cfg, err = c.load(""); err != nil {
			return err
		}
	}

	if c.Fingerprint {
		fmt.Println(cfg.Fingerprint())
		return nil
	}
	if c.Write != "" {
		if err := fileutil.WriteAtomic(c.Write, 0o644, c.Force, writeHCL(cfg)); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", c.Write)
		return nil
	}
	_, err := os.Stdout.Write(cfg.HCL())
	return err
}

func writeHCL(cfg *config.Config) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(cfg.HCL())
		return err
	}
}

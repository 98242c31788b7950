package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Host     HostCmd          `cmd:"" help:"Host a round set and wait for an opponent"`
	Join     JoinCmd          `cmd:"" help:"Join a hosted round set"`
	Practice PracticeCmd      `cmd:"" help:"Play against the built-in bot locally"`
	Config   ConfigCmd        `cmd:"" help:"Print the effective configuration as HCL"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("colorbets"),
		kong.Description("Two-player chip betting on red or green"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

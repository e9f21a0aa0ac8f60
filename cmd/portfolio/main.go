// Command portfolio values holdings at live market prices and compares
// portfolios.
//
// Usage:
//
//	portfolio value [-provider okx] [-quote USDT] [portfolio.yaml]
//	portfolio compare [-provider okx] [-quote USDT] <a.yaml> <b.yaml>
//
// value without a file reads the OKX account given by OKX_API_KEY,
// OKX_API_SECRET and OKX_API_PASSPHRASE.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&valueCmd{}, "")
	commander.Register(&compareCmd{}, "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(int(commander.Execute(ctx)))
}

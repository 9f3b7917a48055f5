package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "coinwatch",
		Usage: "Crypto market sync service and portfolio tracker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (defaults are used when empty)",
				Sources: cli.EnvVars("COINWATCH_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			pricesCommand(),
			portfolioCommand(),
		},
	}
}

// Command partyctl inspects the party store without starting the bot.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "partyctl",
		Usage: "Inspect active and archived parties",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Value:   "redis",
				Usage:   "store backend: redis, mysql or memory",
				EnvVars: []string{"RAIDPARTY_STORE_BACKEND", "STORE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Value:   "redis://127.0.0.1:6379/0",
				EnvVars: []string{"RAIDPARTY_REDIS_URL", "REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "redis-prefix",
				Value:   "raidparty",
				EnvVars: []string{"RAIDPARTY_REDIS_PREFIX", "REDIS_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "mysql-dsn",
				EnvVars: []string{"RAIDPARTY_MYSQL_DSN", "MYSQL_DSN"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw records instead of a table",
			},
		},
		Commands: []*cli.Command{
			activeCommand(),
			showCommand(),
			archiveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "partyctl:", err)
		os.Exit(1)
	}
}

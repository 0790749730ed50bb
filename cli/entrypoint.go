package cli

import (
	"fmt"

	"github.com/carlmontanari/slurptun/slurptun"
	"github.com/urfave/cli/v2"
)

const (
	configFlag     = "config"
	liveReloadFlag = "live-reload"
)

// ShowVersion shows the slurptun version information for the slurptun CLI.
func ShowVersion(_ *cli.Context) {
	fmt.Printf("\tversion: %s\n", slurptun.Version)                            //nolint:forbidigo
	fmt.Printf("\tsource : %s\n", "https://github.com/carlmontanari/slurptun") //nolint:forbidigo
}

// Entrypoint loads the slurptun config, creates the slurptun process and starts it.
func Entrypoint() *cli.App {
	cli.VersionPrinter = ShowVersion

	return &cli.App{
		Name:    "slurptun",
		Version: slurptun.Version,
		Usage:   "run slurptun!",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     configFlag,
				Usage:    "slurptun configuration file to load",
				Required: false,
				Value:    "slurptun.yaml",
			},
			&cli.BoolFlag{
				Name:     liveReloadFlag,
				Usage:    "watch the config file and rebuild the tunnel on changes",
				Required: false,
				Value:    false,
			},
		},
		Action: func(ctx *cli.Context) error {
			m, err := slurptun.GetManager(
				slurptun.WithConfigFile(ctx.String(configFlag)),
				slurptun.WithLiveReload(ctx.Bool(liveReloadFlag)),
			)
			if err != nil {
				return err
			}

			return m.Run()
		},
	}
}

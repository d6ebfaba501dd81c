package cli

import (
	"github.com/teknoro/teknoro"
	"github.com/teknoro/teknoro/core"

	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Value: core.DefaultConfigFile,
	Usage: "path to the site config file",
}

var serveFlags = []cli.Flag{
	&cli.IntFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   8080,
		Usage:   "port to listen on",
		EnvVars: []string{"PORT"},
	},
	configFlag,
}

func runtimeConfig(c *cli.Context, env string, cache bool) teknoro.RuntimeConfig {
	return teknoro.RuntimeConfig{
		Env:         env,
		EnableCache: cache,
		Port:        c.Int("port"),
		ConfigPath:  c.String("config"),
	}
}

var DevCommand = &cli.Command{
	Name:  "dev",
	Usage: "Start the site in dev mode (no caching, live reload)",
	Flags: serveFlags,
	Action: func(c *cli.Context) error {
		teknoro.Start(runtimeConfig(c, "dev", false))
		return nil
	},
}

var ProdCommand = &cli.Command{
	Name:  "prod",
	Usage: "Start the site in production mode (page cache on)",
	Flags: serveFlags,
	Action: func(c *cli.Context) error {
		teknoro.Start(runtimeConfig(c, "prod", true))
		return nil
	},
}

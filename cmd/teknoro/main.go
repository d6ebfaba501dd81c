package main

import (
	"log"
	"os"

	teknorocli "github.com/teknoro/teknoro/cli"
	"github.com/urfave/cli/v2"
)

func runApp(args []string) error {
	app := &cli.App{
		Name:  "teknoro",
		Usage: "Serve the Teknoro Software website and its contact relay",
		Commands: []*cli.Command{
			teknorocli.InitCommand,
			teknorocli.DevCommand,
			teknorocli.ProdCommand,
			teknorocli.CleanCommand,
			teknorocli.CheckCommand,
			teknorocli.InfoCommand,
		},
	}
	return app.Run(args)
}

func main() {
	if err := runApp(os.Args); err != nil {
		log.Fatal(err)
	}
}

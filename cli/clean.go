package cli

import (
	"fmt"
	"os"

	"github.com/teknoro/teknoro/core"
	"github.com/urfave/cli/v2"
)

var CleanCommand = &cli.Command{
	Name:      "clean",
	Usage:     "Delete cached pages and assets, optionally for a single route",
	ArgsUsage: "[route]",
	Flags:     []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		config := core.LoadConfig(c.String("config"))

		target, err := core.CacheDir(*config, c.Args().First())
		if err != nil {
			return err
		}

		info, err := os.Stat(target)
		switch {
		case os.IsNotExist(err):
			fmt.Println("🧼 Nothing to clean:", target)
			return nil
		case err != nil:
			return fmt.Errorf("failed to access path: %w", err)
		case !info.IsDir():
			return fmt.Errorf("not a directory: %s", target)
		}

		fmt.Println("🧹 Cleaning:", target)
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to clean cache: %w", err)
		}
		fmt.Println("✅ Done.")
		return nil
	},
}

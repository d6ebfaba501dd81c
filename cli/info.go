package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teknoro/teknoro/core"
	"github.com/urfave/cli/v2"
)

var InfoCommand = &cli.Command{
	Name:  "info",
	Usage: "Print site structure, contact relay settings and cache summary",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		config := core.LoadConfig(c.String("config"))

		fmt.Println("📁 Output Directory:", config.OutputDir)
		fmt.Println("🔁 Cache Enabled:", config.CacheEnabled)
		fmt.Println("🔁 Debug Headers Enabled:", config.DebugHeaders)
		fmt.Println("🔁 Debug Logs Enabled:", config.DebugLogs)

		upstream := config.Contact.UpstreamURL
		if upstream == "" {
			upstream = "(not configured)"
		}
		fmt.Println("📮 Contact Upstream:", upstream)
		if config.Contact.Timeout > 0 {
			fmt.Println("⏱️  Contact Timeout:", config.Contact.Timeout)
		}
		fmt.Println()

		componentCount := countFiles("components", func(path string, info os.FileInfo) bool {
			return !info.IsDir() && strings.HasSuffix(path, ".html")
		})
		routeCount := countFiles("routes", func(path string, info os.FileInfo) bool {
			if !info.IsDir() || strings.HasPrefix(info.Name(), "_") {
				return false
			}
			_, err := os.Stat(filepath.Join(path, "index.html"))
			return err == nil
		})
		cacheCount := countFiles(config.OutputDir, func(path string, info os.FileInfo) bool {
			return !info.IsDir() && strings.HasSuffix(path, ".html")
		})

		fmt.Println("🗂️  Routes Found:", routeCount)
		fmt.Println("📦 Components Found:", componentCount)
		fmt.Println("💾 Cached Pages:", cacheCount)

		return nil
	},
}

func countFiles(root string, match func(string, os.FileInfo) bool) int {
	n := 0
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && match(path, info) {
			n++
		}
		return nil
	})
	return n
}

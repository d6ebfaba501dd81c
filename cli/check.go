package cli

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/teknoro/teknoro/core"
	"github.com/urfave/cli/v2"
)

var CheckCommand = &cli.Command{
	Name:  "check",
	Usage: "Validate the config, templates, components and layouts",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		var failed bool

		config := core.LoadConfig(c.String("config"))
		if err := config.Validate(); err != nil {
			failed = true
			fmt.Printf("❌ config → %v\n", err)
		} else {
			fmt.Println("✅ config")
		}

		var components []string
		filepath.Walk("components", func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() && strings.HasSuffix(path, ".html") {
				components = append(components, path)
			}
			return nil
		})

		filepath.Walk("routes", func(path string, info os.FileInfo, err error) error {
			if err != nil || !info.IsDir() {
				return nil
			}

			htmlPath := filepath.Join(path, "index.html")
			if _, err := os.Stat(htmlPath); err != nil {
				return nil
			}

			rel, _ := filepath.Rel("routes", path)
			if rel == "." {
				rel = "/"
			} else {
				rel = "/" + filepath.ToSlash(rel)
			}

			if err := checkRoute(htmlPath, components); err != nil {
				failed = true
				fmt.Printf("❌ %s → %v\n", rel, err)
				return nil
			}
			fmt.Printf("✅ %s\n", rel)
			return nil
		})

		if failed {
			return cli.Exit("some checks failed", 1)
		}

		fmt.Println("✅ All templates validated successfully.")
		return nil
	},
}

func checkRoute(htmlPath string, components []string) error {
	files := append([]string{htmlPath}, components...)
	entry := filepath.Base(htmlPath)
	if layout := core.ParseLayoutDirective(htmlPath); layout != "" {
		files = append([]string{layout}, files...)
		entry = "layout"
	}

	tmpl, err := template.New(filepath.Base(files[0])).
		Funcs(core.TemplateFuncs("dev", "cache")).
		ParseFiles(files...)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	data, err := core.LoadPageData(filepath.Join(filepath.Dir(htmlPath), "index.data.yml"))
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	data["Params"] = map[string]string{}
	data["Env"] = "dev"

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, entry, data); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}
	return nil
}

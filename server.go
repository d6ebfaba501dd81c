package teknoro

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/teknoro/teknoro/core"
)

type RuntimeConfig struct {
	Env         string
	EnableCache bool
	Port        int
	ConfigPath  string
}

const reloadPath = "/__teknoro_reload"

var (
	ListenAndServe = http.ListenAndServe
	Exit           = os.Exit
)

// Start builds the server and blocks serving it. Startup and serve failures
// exit the process with status 1.
var Start = func(cfg RuntimeConfig) {
	fmt.Println("🚀 Starting Teknoro in", cfg.Env, "mode...")

	addr, handler, err := BuildServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		Exit(1)
		return
	}

	fmt.Printf("✅ Teknoro running at http://localhost%s\n", addr)
	if err := ListenAndServe(addr, handler); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Server failed: %v\n", err)
		Exit(1)
	}
}

func BuildServer(cfg RuntimeConfig) (string, http.Handler, error) {
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = core.DefaultConfigFile
	}

	config := core.LoadConfig(configPath)
	config.CacheEnabled = cfg.EnableCache
	if err := config.Validate(); err != nil {
		return "", nil, err
	}

	logger := core.NewLogger(config.DebugLogs)
	relay := core.NewContactRelay(config.Contact, logger.Named("contact"))

	mux := http.NewServeMux()
	publicDir := "public"
	cacheStaticDir := filepath.Join(config.OutputDir, "static")

	rc := core.RuntimeContext{
		Env:    cfg.Env,
		Logger: logger.Named("router"),
		API: map[string]http.Handler{
			"contact": relay,
		},
	}

	if cfg.Env == "dev" {
		setupDevStaticRoutes(mux, publicDir)

		reloader := core.NewLiveReloader()
		mux.HandleFunc(reloadPath, reloader.Handler)

		rc.EnableWatch = true
		rc.OnReload = reloader.BroadcastReload
	} else {
		mux.Handle("/static/", makeStaticHandler(publicDir, cacheStaticDir))
		for _, name := range []string{"favicon.ico", "robots.txt"} {
			file := filepath.Join(publicDir, name)
			mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
				serveFileWithHeaders(w, r, file, "public, max-age=86400")
			})
		}
	}

	mux.Handle("/", core.NewRouter(*config, rc))

	return fmt.Sprintf(":%d", cfg.Port), mux, nil
}

func setupDevStaticRoutes(mux *http.ServeMux, publicDir string) {
	mux.Handle("/static/", http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.FileServer(http.Dir(publicDir)).ServeHTTP(w, r)
	})))

	for _, name := range []string{"favicon.ico", "robots.txt"} {
		file := filepath.Join(publicDir, name)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, file)
		})
	}
}

// makeStaticHandler serves /static/ from the cache dir first (gzip when the
// client accepts it) and falls back to the public dir.
func makeStaticHandler(publicDir, cacheDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trimmed := strings.TrimPrefix(r.URL.Path, "/static/")
		if trimmed == "" || slices.Contains(strings.Split(trimmed, "/"), "..") {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		rel := filepath.FromSlash(trimmed)

		cachedFile := filepath.Join(cacheDir, rel)
		gzipFile := cachedFile + ".gz"
		immutable := "public, max-age=31536000, immutable"

		if acceptsGzip(r) {
			if _, err := os.Stat(gzipFile); err == nil {
				w.Header().Set("Content-Type", detectMimeType(cachedFile))
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Set("Vary", "Accept-Encoding")
				w.Header().Set("Cache-Control", immutable)
				http.ServeFile(w, r, gzipFile)
				return
			}
		}

		if _, err := os.Stat(cachedFile); err == nil {
			serveFileWithHeaders(w, r, cachedFile, immutable)
			return
		}

		publicFile := filepath.Join(publicDir, rel)
		if _, err := os.Stat(publicFile); err == nil {
			serveFileWithHeaders(w, r, publicFile, immutable)
			return
		}

		http.NotFound(w, r)
	})
}

func serveFileWithHeaders(w http.ResponseWriter, r *http.Request, path, cacheControl string) {
	w.Header().Set("Content-Type", detectMimeType(path))
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeFile(w, r, path)
}

func detectMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

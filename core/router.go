package core

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Route struct {
	URLPattern *regexp.Regexp
	ParamKeys  []string
	HTMLPath   string
	DataPath   string
	FilePath   string
}

// RuntimeContext carries what the router needs from the running server.
type RuntimeContext struct {
	Env         string
	EnableWatch bool
	OnReload    func()
	Logger      *zap.Logger
	API         map[string]http.Handler
}

type Router struct {
	config    Config
	env       string
	mu        sync.RWMutex
	routes    []Route
	apiRoutes []ApiRoute
	logger    *zap.Logger
	watcher   *Watcher
}

var NewRouter = func(config Config, ctx RuntimeContext) http.Handler {
	logger := ctx.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		config: config,
		env:    ctx.Env,
		logger: logger,
	}
	r.loadRoutes()
	r.loadApiRoutes(ctx.API)

	if ctx.EnableWatch && ctx.OnReload != nil {
		w, err := NewWatcher(WatchedDirs, func() {
			r.loadRoutes()
			ctx.OnReload()
		})
		if err != nil {
			logger.Warn("file watcher disabled", zap.Error(err))
		} else {
			r.watcher = w
		}
	}

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := strings.Trim(req.URL.Path, "/")

	if path == "api" || strings.HasPrefix(path, "api/") {
		for _, route := range r.apiRoutes {
			if matches := route.URLPattern.FindStringSubmatch(path); matches != nil {
				r.handleAPI(w, req, route, paramsFor(route.ParamKeys, matches))
				return
			}
		}
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}

	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, route := range routes {
		if matches := route.URLPattern.FindStringSubmatch(path); matches != nil {
			r.servePage(w, req, route, path, paramsFor(route.ParamKeys, matches))
			return
		}
	}

	r.serveNotFound(w, req)
}

func paramsFor(keys []string, matches []string) map[string]string {
	params := make(map[string]string, len(keys))
	for i, key := range keys {
		params[key] = matches[i+1]
	}
	return params
}

func (r *Router) cacheable() bool {
	return r.env == "prod" && r.config.CacheEnabled
}

func (r *Router) servePage(w http.ResponseWriter, req *http.Request, route Route, key string, params map[string]string) {
	if r.cacheable() {
		if html, ok := GetCachedHTML(r.config, key); ok {
			r.writeHTML(w, req, route, html, "HIT")
			return
		}
	}

	data, err := LoadPageData(route.DataPath)
	if err != nil {
		r.serveError(w, req, fmt.Errorf("page data %s: %w", route.DataPath, err))
		return
	}
	data["Params"] = params
	data["Env"] = r.env

	html, err := r.render(route.HTMLPath, data)
	if err != nil {
		r.serveError(w, req, err)
		return
	}

	if r.cacheable() {
		html = MinifyHTML(html)
		if err := SaveCachedHTML(r.config, key, html); err != nil {
			r.logger.Warn("page cache write failed", zap.String("route", key), zap.Error(err))
		}
	}

	r.writeHTML(w, req, route, html, "MISS")
}

func (r *Router) writeHTML(w http.ResponseWriter, req *http.Request, route Route, html []byte, cacheStatus string) {
	etag := generateETag(html)

	if r.config.DebugHeaders {
		w.Header().Set("X-Teknoro-Route", route.FilePath)
		w.Header().Set("X-Teknoro-Cache", cacheStatus)
	}
	w.Header().Set("ETag", etag)
	if r.env == "dev" {
		w.Header().Set("Cache-Control", "no-store")
	}

	if match := req.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// render parses the page with its layout and every component, then executes
// "layout" when a layout is declared and the page itself otherwise.
func (r *Router) render(htmlPath string, data map[string]interface{}) ([]byte, error) {
	files := []string{htmlPath}
	layout := r.getLayoutPath(htmlPath)
	if layout != "" {
		files = append([]string{layout}, files...)
	}
	files = append(files, componentFiles()...)

	tmpl, err := template.New(filepath.Base(files[0])).
		Funcs(TemplateFuncs(r.env, r.config.OutputDir)).
		ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("template parse %s: %w", htmlPath, err)
	}

	entry := filepath.Base(htmlPath)
	if layout != "" {
		entry = "layout"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, fmt.Errorf("template exec %s: %w", htmlPath, err)
	}
	return buf.Bytes(), nil
}

func componentFiles() []string {
	var files []string
	filepath.WalkDir("components", func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".html") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func (r *Router) getLayoutPath(htmlPath string) string {
	return ParseLayoutDirective(htmlPath)
}

// ParseLayoutDirective returns the path from a `<!-- layout: path -->` line.
func ParseLayoutDirective(htmlPath string) string {
	content, err := os.ReadFile(htmlPath)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "<!-- layout:") && strings.HasSuffix(line, "-->") {
			return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "<!-- layout:"), "-->"))
		}
	}
	return ""
}

func (r *Router) errorPage() string {
	for _, name := range []string{"404.html", "index.html"} {
		p := filepath.Join("routes", "_error", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (r *Router) serveNotFound(w http.ResponseWriter, req *http.Request) {
	page := r.errorPage()
	if page == "" {
		http.NotFound(w, req)
		return
	}

	// the error page shares the root page's data so layouts and components
	// see the same site fields
	data, err := LoadPageData(filepath.Join("routes", "index.data.yml"))
	if err != nil {
		data = map[string]interface{}{}
	}
	data["Env"] = r.env
	data["Status"] = http.StatusNotFound
	data["Path"] = req.URL.Path

	html, err := r.render(page, data)
	if err != nil {
		r.logger.Error("error page render failed", zap.Error(err))
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(html)
}

func (r *Router) serveError(w http.ResponseWriter, req *http.Request, err error) {
	r.logger.Error("page render failed", zap.String("path", req.URL.Path), zap.Error(err))
	if r.env == "dev" {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func generateETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (r *Router) loadRoutes() {
	var routes []Route

	filepath.WalkDir("routes", func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), "_") {
			return filepath.SkipDir
		}

		htmlPath := filepath.Join(path, "index.html")
		if _, err := os.Stat(htmlPath); err != nil {
			return nil
		}

		rel := filepath.ToSlash(strings.TrimPrefix(path, "routes"))
		paramKeys := []string{}
		pattern := ""

		for _, part := range strings.Split(strings.Trim(rel, "/"), "/") {
			if part == "" {
				continue
			}
			if strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") {
				paramKeys = append(paramKeys, part[1:len(part)-1])
				pattern += "/([^/]+)"
			} else {
				pattern += "/" + regexp.QuoteMeta(part)
			}
		}

		routes = append(routes, Route{
			URLPattern: regexp.MustCompile("^" + strings.TrimPrefix(pattern, "/") + "$"),
			ParamKeys:  paramKeys,
			HTMLPath:   htmlPath,
			DataPath:   filepath.Join(path, "index.data.yml"),
			FilePath:   path,
		})
		return nil
	})

	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
}

// Close stops the dev file watcher, if any.
func (r *Router) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

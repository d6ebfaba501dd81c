package core

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

const cachedPageName = "index.html"

// cacheKey maps a route path to its directory under the output dir. Routes
// that climb out of it are rejected.
func cacheKey(route string) (string, error) {
	if slices.Contains(strings.Split(filepath.ToSlash(route), "/"), "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidRoute, route)
	}
	cleaned := path.Clean("/" + strings.TrimSpace(route))
	return filepath.FromSlash(strings.TrimPrefix(cleaned, "/")), nil
}

func cachePath(config Config, route string) (string, error) {
	key, err := cacheKey(route)
	if err != nil {
		return "", err
	}
	return filepath.Join(config.OutputDir, key, cachedPageName), nil
}

func GetCachedHTML(config Config, route string) ([]byte, bool) {
	p, err := cachePath(config, route)
	if err != nil {
		return nil, false
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return content, true
}

// SaveCachedHTML writes the rendered page and a gzip copy next to it.
func SaveCachedHTML(config Config, route string, html []byte) error {
	p, err := cachePath(config, route)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(p, html, 0644); err != nil {
		return err
	}
	return writeGzip(p+".gz", html)
}

// CacheDir returns the directory holding the cache for route, or the whole
// output dir when route is empty.
func CacheDir(config Config, route string) (string, error) {
	key, err := cacheKey(route)
	if err != nil {
		return "", err
	}
	return filepath.Join(config.OutputDir, key), nil
}

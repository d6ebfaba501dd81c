package core

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/russross/blackfriday/v2"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	minjs "github.com/tdewolff/minify/v2/js"
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	m.AddFunc("application/javascript", minjs.Minify)
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return m
}

// MinifyAsset minifies a /static/ css or js file into cacheDir/static and
// returns its versioned URL. Outside prod the path is returned untouched.
func MinifyAsset(env, path string, cacheDir string) string {
	if env != "prod" {
		return path
	}

	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)
	if ext != ".css" && ext != ".js" {
		return path
	}
	if strings.Contains(name, ".min") {
		return path
	}

	publicPath := strings.TrimPrefix(path, "/static/")
	src := filepath.Join("public", publicPath)
	min := filepath.Join(cacheDir, "static", fmt.Sprintf("%s.min%s", name, ext))

	original, err := os.ReadFile(src)
	if err != nil {
		return path
	}

	mediaType := "text/css"
	if ext == ".js" {
		mediaType = "application/javascript"
	}

	var buf bytes.Buffer
	if err := newMinifier().Minify(mediaType, &buf, bytes.NewReader(original)); err != nil {
		return path
	}
	minified := buf.Bytes()

	if err := os.MkdirAll(filepath.Dir(min), os.ModePerm); err != nil {
		return path
	}
	if err := os.WriteFile(min, minified, 0644); err != nil {
		return path
	}
	_ = writeGzip(min+".gz", minified)

	return fmt.Sprintf("/static/%s.min%s?v=%s", name, ext, shortHash(minified))
}

// MinifyHTML is used on rendered pages before they are cached.
func MinifyHTML(html []byte) []byte {
	var buf bytes.Buffer
	if err := newMinifier().Minify("text/html", &buf, bytes.NewReader(html)); err != nil {
		return html
	}
	return buf.Bytes()
}

func shortHash(b []byte) string {
	h := md5.Sum(b)
	return hex.EncodeToString(h[:])[:6]
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// TemplateFuncs is sprig plus the site helpers available to every page.
func TemplateFuncs(env, cacheDir string) template.FuncMap {
	funcs := sprig.FuncMap()

	funcs["minify"] = func(path string) string {
		return MinifyAsset(env, path, cacheDir)
	}
	funcs["props"] = func(values ...interface{}) map[string]interface{} {
		if len(values)%2 != 0 {
			panic("props must be called with even number of arguments")
		}
		m := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				panic("props keys must be strings")
			}
			m[key] = values[i+1]
		}
		return m
	}
	funcs["safeHTML"] = func(s interface{}) template.HTML {
		switch val := s.(type) {
		case template.HTML:
			return val
		case string:
			return template.HTML(val)
		default:
			return ""
		}
	}
	funcs["markdown"] = func(s interface{}) template.HTML {
		text, ok := s.(string)
		if !ok {
			return ""
		}
		out := blackfriday.Run([]byte(text), blackfriday.WithExtensions(blackfriday.CommonExtensions))
		return template.HTML(bytes.TrimSpace(out))
	}
	funcs["versioned"] = func(path string) string {
		if !strings.HasPrefix(path, "/static/") {
			return path
		}
		rel := strings.TrimPrefix(path, "/static/")
		for _, file := range []string{
			filepath.Join("public", rel),
			filepath.Join(cacheDir, "static", rel),
		} {
			if content, err := os.ReadFile(file); err == nil {
				return fmt.Sprintf("/static/%s?v=%s", rel, shortHash(content))
			}
		}
		return path
	}

	return funcs
}

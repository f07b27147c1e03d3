// Package render resolves and executes html templates by candidate name.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"autocomplete/internal/config"
)

// ErrTemplateNotFound reports that no candidate name resolved.
var ErrTemplateNotFound = errors.New("template not found")

// NotFoundError names the candidates that were tried.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: tried %s", ErrTemplateNotFound, strings.Join(e.Names, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }

//go:embed templates
var builtin embed.FS

const defaultCacheSize = 128

// Engine loads templates from an ordered list of file systems; the first
// file system holding a name wins. Built-in defaults are searched last.
// Parsed templates are cached by name, and so are names no file system
// holds, until Purge.
type Engine struct {
	dirs   []fs.FS
	cache  *lru.Cache[string, *template.Template]
	misses *lru.Cache[string, struct{}]
}

// New returns an engine searching dirs, then the built-in templates.
// cacheSize <= 0 selects the default size.
func New(cacheSize int, dirs ...fs.FS) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](cacheSize)
	if err != nil {
		return nil, err
	}
	misses, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	all := make([]fs.FS, 0, len(dirs)+1)
	all = append(all, dirs...)
	all = append(all, sub)
	return &Engine{dirs: all, cache: cache, misses: misses}, nil
}

// NewFromEnv honours AUTOCOMPLETE_TEMPLATE_DIR and
// AUTOCOMPLETE_TEMPLATE_CACHE_SIZE.
func NewFromEnv() (*Engine, error) {
	size := config.Int("AUTOCOMPLETE_TEMPLATE_CACHE_SIZE", 0)
	var dirs []fs.FS
	if dir := os.Getenv("AUTOCOMPLETE_TEMPLATE_DIR"); dir != "" {
		dirs = append(dirs, os.DirFS(dir))
	}
	return New(size, dirs...)
}

// Render executes the first resolvable template among names with data.
func (e *Engine) Render(names []string, data any) (string, error) {
	for _, name := range names {
		t, err := e.lookup(name)
		if err != nil {
			return "", err
		}
		if t == nil {
			continue
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render %s: %w", name, err)
		}
		return buf.String(), nil
	}
	return "", &NotFoundError{Names: append([]string(nil), names...)}
}

// lookup returns nil, nil when no file system holds name.
func (e *Engine) lookup(name string) (*template.Template, error) {
	if t, ok := e.cache.Get(name); ok {
		return t, nil
	}
	if e.misses.Contains(name) {
		return nil, nil
	}
	for _, dir := range e.dirs {
		b, err := fs.ReadFile(dir, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		t, err := template.New(name).Parse(string(b))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		e.cache.Add(name, t)
		return t, nil
	}
	e.misses.Add(name, struct{}{})
	return nil, nil
}

// Purge drops every cached template and miss, e.g. after templates changed
// on disk.
func (e *Engine) Purge() {
	e.cache.Purge()
	e.misses.Purge()
}

// Len reports the number of cached templates.
func (e *Engine) Len() int { return e.cache.Len() }

package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

const defaultFile = "messages.en.yaml"

//go:embed messages.en.yaml
var embedded embed.FS

var ErrUnknownKey = errors.New("msgcat: unknown key")

// Catalog maps dotted keys to text/template sources. Templates render with
// missingkey=error, so callers keep their own fallback text.
type Catalog struct {
	mu        sync.RWMutex
	data      map[string]string
	source    map[string]string // key -> file that set it last
	templates map[string]*template.Template
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded English catalog, loaded once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = New("")
	})
	return defaultCatalog, defaultErr
}

// New loads the embedded messages, then every *.yaml and *.yml file in
// overrideDir in name order. Two override files may not set the same key.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{
		data:      make(map[string]string),
		source:    make(map[string]string),
		templates: make(map[string]*template.Template),
	}
	raw, err := embedded.ReadFile(defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.load(defaultFile, raw); err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		if err := c.loadDir(dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("message dir: %w", err)
	}
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := c.load(filepath.Base(path), raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) load(name string, raw []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	flat := make(map[string]string)
	if err := flatten(doc.Content[0], "", flat); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, text := range flat {
		if prev, ok := c.source[key]; ok && prev != defaultFile && prev != name {
			return fmt.Errorf("duplicate override key %q in %s and %s", key, prev, name)
		}
		c.data[key] = text
		c.source[key] = name
		delete(c.templates, key)
	}
	return nil
}

func flatten(n *yaml.Node, prefix string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := flatten(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: value without a key", n.Line)
		}
		if n.Tag != "!!null" {
			out[prefix] = n.Value
		}
	case yaml.AliasNode:
		return flatten(n.Alias, prefix, out)
	default:
		return fmt.Errorf("line %d: %s must be text or a mapping", n.Line, prefix)
	}
	return nil
}

// Has reports whether key has non-blank text.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.TrimSpace(c.data[strings.TrimSpace(key)]) != ""
}

func (c *Catalog) Render(key string, data any) (string, error) {
	key = strings.TrimSpace(key)
	tpl, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return sb.String(), nil
}

func (c *Catalog) lookup(key string) (*template.Template, error) {
	c.mu.RLock()
	tpl, cached := c.templates[key]
	text := c.data[key]
	c.mu.RUnlock()
	if cached {
		return tpl, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	tpl, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	c.mu.Lock()
	c.templates[key] = tpl
	c.mu.Unlock()
	return tpl, nil
}

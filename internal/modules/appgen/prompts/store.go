package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/anything-backend/internal/platform/logger"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// Template is one prompt: a system text, a user text with {placeholders},
// and optional model hints that override the generator defaults.
type Template struct {
	Name        PromptName `yaml:"-"`
	System      string     `yaml:"system"`
	User        string     `yaml:"user"`
	MaxTokens   int        `yaml:"max_tokens"`
	Temperature *float64   `yaml:"temperature"`
}

// Render formats both texts and reports placeholders left unresolved.
func (t Template) Render(bindings map[string]any) (system, user string, unresolved []string) {
	system = strings.TrimSpace(Format(t.System, bindings))
	user = strings.TrimSpace(Format(t.User, bindings))
	unresolved = append(Unresolved(system), Unresolved(user)...)
	return system, user, unresolved
}

type TemplateNotFoundError struct {
	Name PromptName
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template %q not found", string(e.Name))
}

type Source interface {
	Get(name PromptName) (Template, error)
}

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
)

// Store resolves templates from an optional override directory, one
// <name>.yaml per template, then from the embedded set. Override reads are
// cached so edits show up after the TTL without a restart.
type Store struct {
	log      *logger.Logger
	dir      string
	embedded map[PromptName]Template
	cache    *expirable.LRU[PromptName, Template]
}

type StoreOption func(*Store)

// WithOverrideDir enables the override directory.
func WithOverrideDir(dir string) StoreOption {
	return func(s *Store) { s.dir = strings.TrimSpace(dir) }
}

// WithCacheTTL replaces the override cache with one using ttl.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.cache = expirable.NewLRU[PromptName, Template](defaultCacheSize, nil, ttl)
	}
}

func NewStore(baseLog *logger.Logger, opts ...StoreOption) (*Store, error) {
	embedded, err := decodeTemplates(embeddedTemplates)
	if err != nil {
		return nil, fmt.Errorf("decode embedded prompt templates: %w", err)
	}
	s := &Store{
		log:      baseLog.With("component", "PromptStore"),
		embedded: embedded,
		cache:    expirable.NewLRU[PromptName, Template](defaultCacheSize, nil, defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStoreFromBytes builds a store backed only by the given YAML document.
func NewStoreFromBytes(baseLog *logger.Logger, raw []byte) (*Store, error) {
	set, err := decodeTemplates(raw)
	if err != nil {
		return nil, err
	}
	return &Store{
		log:      baseLog.With("component", "PromptStore"),
		embedded: set,
		cache:    expirable.NewLRU[PromptName, Template](defaultCacheSize, nil, defaultCacheTTL),
	}, nil
}

func (s *Store) Get(name PromptName) (Template, error) {
	if s.dir != "" {
		if t, ok := s.cache.Get(name); ok {
			return t, nil
		}
		t, ok, err := s.loadOverride(name)
		if err != nil {
			return Template{}, err
		}
		if ok {
			s.cache.Add(name, t)
			return t, nil
		}
	}
	t, ok := s.embedded[name]
	if !ok {
		return Template{}, &TemplateNotFoundError{Name: name}
	}
	return t, nil
}

func (s *Store) loadOverride(name PromptName) (Template, bool, error) {
	path := filepath.Join(s.dir, string(name)+".yaml")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Template{}, false, nil
	}
	if err != nil {
		return Template{}, false, fmt.Errorf("read prompt override %s: %w", path, err)
	}
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Template{}, false, fmt.Errorf("decode prompt override %s: %w", path, err)
	}
	t.Name = name
	s.log.Debug("Loaded prompt override", "prompt", string(name), "path", path)
	return t, true, nil
}

func decodeTemplates(raw []byte) (map[PromptName]Template, error) {
	var doc map[string]Template
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[PromptName]Template, len(doc))
	for k, t := range doc {
		name := PromptName(strings.TrimSpace(k))
		t.Name = name
		out[name] = t
	}
	return out, nil
}

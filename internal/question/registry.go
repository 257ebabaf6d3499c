package question

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const (
	SourceXLSX = "xlsx"
	SourceSQL  = "sql"
)

const loadTimeout = 30 * time.Second

// defaultAliases maps the subject/bank spellings used in navigation links to
// canonical bank keys. Entries in banks.yaml override these.
var defaultAliases = map[string]string{
	"mathematics": "ssc_maths_geometry",
	"maths":       "ssc_maths_geometry",
	"geometry":    "ssc_maths_geometry",
	"algebra":     "ssc_maths_algebra",
	"science":     "science_1",
	"science1":    "science_1",
	"science2":    "science_2",
	"english":     "ssc_english",
}

type BankConfig struct {
	Key         string `yaml:"-" json:"key"`
	Title       string `yaml:"title" json:"title,omitempty"`
	Source      string `yaml:"source" json:"-"`
	Path        string `yaml:"path" json:"-"`
	AllowRetake *bool  `yaml:"allow_retake" json:"-"`
}

type RegistryFile struct {
	Aliases map[string]string     `yaml:"aliases"`
	Banks   map[string]BankConfig `yaml:"banks"`
}

func LoadRegistryFile(path string) (RegistryFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RegistryFile{}, fmt.Errorf("read banks file: %w", err)
	}
	return ParseRegistryFile(raw)
}

func ParseRegistryFile(raw []byte) (RegistryFile, error) {
	var f RegistryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return RegistryFile{}, fmt.Errorf("parse banks file: %w", err)
	}
	return f, nil
}

type cacheEntry struct {
	bank    *Bank
	expires time.Time
}

// Registry resolves bank keys and serves loaded banks from a short-lived
// cache. Concurrent loads of the same bank share one read.
type Registry struct {
	aliases map[string]string
	banks   map[string]BankConfig
	sources map[string]Source
	ttl     time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cacheEntry
	now   func() time.Time
}

func NewRegistry(file RegistryFile, db *sql.DB, ttl time.Duration) (*Registry, error) {
	r := &Registry{
		aliases: make(map[string]string, len(defaultAliases)+len(file.Aliases)),
		banks:   make(map[string]BankConfig, len(file.Banks)),
		sources: make(map[string]Source, len(file.Banks)),
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
	for k, v := range defaultAliases {
		r.aliases[k] = v
	}
	for k, v := range file.Aliases {
		r.aliases[normalizeKey(k)] = normalizeKey(v)
	}

	for rawKey, cfg := range file.Banks {
		key := normalizeKey(rawKey)
		cfg.Key = key
		switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
		case "", SourceXLSX:
			r.sources[key] = NewXLSXSource(key, cfg.Path)
		case SourceSQL:
			r.sources[key] = NewSQLSource(db, key)
		default:
			return nil, fmt.Errorf("bank %s source %q: %w", key, cfg.Source, ErrUnsupportedSource)
		}
		r.banks[key] = cfg
	}
	return r, nil
}

// Resolve picks the bank for a request. An empty bank falls back to the
// subject; both go through the alias map.
func (r *Registry) Resolve(bank, subject string) (BankConfig, error) {
	key := normalizeKey(bank)
	if key == "" {
		key = normalizeKey(subject)
	}
	if alias, ok := r.aliases[key]; ok {
		key = alias
	}
	cfg, ok := r.banks[key]
	if !ok {
		return BankConfig{}, fmt.Errorf("%w: %q", ErrUnknownBank, key)
	}
	return cfg, nil
}

func (r *Registry) Banks() []BankConfig {
	out := make([]BankConfig, 0, len(r.banks))
	for _, b := range r.banks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) Load(ctx context.Context, key string) (*Bank, error) {
	src, ok := r.sources[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBank, key)
	}

	if b := r.cached(key); b != nil {
		return b, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if b := r.cached(key); b != nil {
			return b, nil
		}
		// the load is shared by every waiter, so one caller going away
		// must not cancel it for the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		b, err := src.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[key] = cacheEntry{bank: b, expires: r.now().Add(r.ttl)}
			r.mu.Unlock()
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bank), nil
}

// Invalidate drops a cached bank so the next Load rereads its source.
func (r *Registry) Invalidate(key string) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

func (r *Registry) cached(key string) *Bank {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[key]
	if !ok || r.now().After(e.expires) {
		return nil
	}
	return e.bank
}

func normalizeKey(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.ReplaceAll(v, " ", "_")
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is created under the home directory.
	DefaultBaseDir = ".oggopus"
	// DefaultConfigFile is the file name inside the app directory.
	DefaultConfigFile = "config.yaml"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

var (
	ErrContextNotFound  = errors.New("cli: context not found")
	ErrNoCurrentContext = errors.New("cli: no current context")
	ErrInvalidContext   = errors.New("cli: invalid context")
)

// Config is the persisted set of contexts, kubectl style.
type Config struct {
	AppName        string              `yaml:"-"`
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is a named set of settings the commands run with.
type Context struct {
	Name string `json:"name" yaml:"name"`

	// Storage selects where stream paths are resolved. Nil means the local
	// filesystem.
	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// IndexDir is the badger directory of the seek index. Empty means an
	// "index" directory beside the config file.
	IndexDir string `json:"index_dir,omitempty" yaml:"index_dir,omitempty"`

	// SkipMalformed makes the extractor drop malformed audio packets
	// instead of failing.
	SkipMalformed bool `json:"skip_malformed,omitempty" yaml:"skip_malformed,omitempty"`
}

// StorageConfig describes a storage backend.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string `json:"backend" yaml:"backend"`

	// Root is the local root directory.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty" yaml:"path_style,omitempty"`

	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
}

// Validate checks that the fields the backend needs are present.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "", BackendLocal:
	case BackendS3:
		if s.Bucket == "" || s.Region == "" {
			return fmt.Errorf("%w: s3 storage needs both bucket and region", ErrInvalidContext)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidContext, s.Backend)
	}
	return nil
}

// DefaultConfigPath returns ~/.oggopus/<app>/config.yaml.
func DefaultConfigPath(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: locate home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile), nil
}

// Load reads the config at path, or at DefaultConfigPath when path is
// empty. A missing file is created empty.
func Load(appName, path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(appName); err != nil {
			return nil, err
		}
	}
	cfg := &Config{AppName: appName, path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("cli: create config directory: %w", err)
		}
		cfg.Contexts = map[string]*Context{}
		return cfg, cfg.Save()
	case err != nil:
		return nil, fmt.Errorf("cli: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]*Context{}
	}
	for name, ctx := range cfg.Contexts {
		if ctx == nil {
			ctx = &Context{}
			cfg.Contexts[name] = ctx
		}
		ctx.Name = name
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions; it may hold S3
// secrets.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: encode config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// IndexDir returns the seek index directory of ctx.
func (c *Config) IndexDir(ctx *Context) string {
	if ctx != nil && ctx.IndexDir != "" {
		return ctx.IndexDir
	}
	return filepath.Join(filepath.Dir(c.path), "index")
}

// Put stores ctx under name, replacing any context with that name, and
// saves.
func (c *Config) Put(name string, ctx *Context) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidContext)
	}
	if ctx.Storage != nil {
		if err := ctx.Storage.Validate(); err != nil {
			return fmt.Errorf("context %q: %w", name, err)
		}
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// Delete removes a context, clearing it as current if selected.
func (c *Config) Delete(name string) error {
	if _, err := c.Get(name); err != nil {
		return err
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// Use selects the current context.
func (c *Config) Use(name string) error {
	if _, err := c.Get(name); err != nil {
		return err
	}
	c.CurrentContext = name
	return c.Save()
}

func (c *Config) Get(name string) (*Context, error) {
	if ctx, ok := c.Contexts[name]; ok {
		return ctx, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrContextNotFound, name)
}

// Current returns the selected context, or ErrNoCurrentContext.
func (c *Config) Current() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return c.Get(c.CurrentContext)
}

// Resolve returns the named context, the current one when name is empty,
// or an unsaved local "default" context when nothing is selected.
func (c *Config) Resolve(name string) (*Context, error) {
	switch {
	case name != "":
		return c.Get(name)
	case c.CurrentContext != "":
		return c.Current()
	}
	return &Context{Name: "default"}, nil
}

// Names returns the context names in order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Backend returns the storage backend name, defaulting to local.
func (ctx *Context) Backend() string {
	if ctx.Storage == nil || ctx.Storage.Backend == "" {
		return BackendLocal
	}
	return ctx.Storage.Backend
}

// MaskSecret keeps the first and last four characters of long credentials
// and hides short ones entirely.
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Package config provides configuration management for ni applications
// using Viper for loading from files, environment variables, and
// command-line flags.
//
// The recognized keys are root (the application directory, required before
// boot), automatic_views, view_dir, view_ext and custom_routes, plus the
// server and log sections used by the CLI. Any other key is kept as a named
// value readable through Config.Get, the way application code reads its own
// settings at request time.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	nierrors "github.com/conneroisu/ni/internal/errors"
)

// Recognized keys.
const (
	KeyRoot           = "root"
	KeyAutomaticViews = "automatic_views"
	KeyViewDir        = "view_dir"
	KeyViewExt        = "view_ext"
	KeyCustomRoutes   = "custom_routes"
)

type Config struct {
	Root           string        `mapstructure:"root" yaml:"root"`
	AutomaticViews bool          `mapstructure:"automatic_views" yaml:"automatic_views"`
	ViewDir        string        `mapstructure:"view_dir" yaml:"view_dir"`
	ViewExt        string        `mapstructure:"view_ext" yaml:"view_ext"`
	CustomRoutes   []RouteConfig `mapstructure:"-" yaml:"custom_routes"`
	Server         ServerConfig  `mapstructure:"server" yaml:"server"`
	Log            LogConfig     `mapstructure:"log" yaml:"log"`

	mu     sync.RWMutex
	values map[string]interface{}
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// RouteConfig is one custom route as written in a config file. Exactly one
// of Path (exact match) and Pattern (regular expression) is set.
type RouteConfig struct {
	Path    string   `mapstructure:"path" yaml:"path,omitempty"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern,omitempty"`
	To      string   `mapstructure:"to" yaml:"to"`
	Method  string   `mapstructure:"method" yaml:"method,omitempty"`
	Methods []string `mapstructure:"methods" yaml:"methods,omitempty"`
}

// AllMethods merges Method and Methods.
func (rc RouteConfig) AllMethods() []string {
	methods := make([]string, 0, len(rc.Methods)+1)
	if rc.Method != "" {
		methods = append(methods, rc.Method)
	}
	return append(methods, rc.Methods...)
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		ViewDir: "views",
		ViewExt: ".html",
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		values: make(map[string]interface{}),
	}
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := New()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if v.IsSet(KeyCustomRoutes) {
		routes, err := decodeRoutes(v.Get(KeyCustomRoutes))
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		config.CustomRoutes = routes
	}

	// Unmarshal zeroes fields explicitly set to empty values
	if config.ViewDir == "" {
		config.ViewDir = "views"
	}
	if config.ViewExt == "" {
		config.ViewExt = ".html"
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	for key, value := range v.AllSettings() {
		config.values[key] = value
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// decodeRoutes turns the raw custom_routes list into RouteConfig values.
// A single method may be written as a plain string under "methods".
func decodeRoutes(raw interface{}) ([]RouteConfig, error) {
	var routes []RouteConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &routes,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyCustomRoutes, err)
	}
	return routes, nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	var errs nierrors.ValidationErrorCollection

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		errs.AddField("server.port", config.Server.Port, "not in valid range 0-65535")
	}

	if err := validateRelativeDir(config.ViewDir); err != nil {
		errs.AddField(KeyViewDir, config.ViewDir, err.Error())
	}

	if config.ViewExt != "" && !strings.HasPrefix(config.ViewExt, ".") {
		errs.AddField(KeyViewExt, config.ViewExt, "must start with a dot")
	}

	for i, route := range config.CustomRoutes {
		field := fmt.Sprintf("%s[%d]", KeyCustomRoutes, i)
		switch {
		case route.Path == "" && route.Pattern == "":
			errs.AddField(field, route, "needs a path or a pattern")
		case route.Path != "" && route.Pattern != "":
			errs.AddField(field, route, "path and pattern are mutually exclusive")
		}
		if route.To == "" {
			errs.AddField(field+".to", route.To, "destination is required")
		}
		if route.Pattern != "" {
			if _, err := regexp.Compile(route.Pattern); err != nil {
				errs.AddField(field+".pattern", route.Pattern, err.Error())
			}
		}
	}

	if ne := errs.ToNiError(); ne != nil {
		return ne
	}
	return nil
}

// validateRelativeDir rejects absolute paths and traversal
func validateRelativeDir(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("should be a path relative to root")
	}
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal")
	}

	return nil
}

// Get returns a named value. Recognized keys return their typed field;
// other keys come from the loaded settings or from Set. Nested settings
// are addressed with dots ("server.port").
func (c *Config) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToLower(key) {
	case KeyRoot:
		return c.Root
	case KeyAutomaticViews:
		return c.AutomaticViews
	case KeyViewDir:
		return c.ViewDir
	case KeyViewExt:
		return c.ViewExt
	case KeyCustomRoutes:
		return c.CustomRoutes
	}

	return lookup(c.values, strings.Split(strings.ToLower(key), "."))
}

// GetString returns a named value formatted as a string, or "" if unset.
func (c *Config) GetString(key string) string {
	value := c.Get(key)
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Set stores a named value. Recognized keys update their typed field.
func (c *Config) Set(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key = strings.ToLower(key)
	switch key {
	case KeyRoot:
		s, ok := value.(string)
		if !ok {
			return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid, "root must be a string")
		}
		c.Root = s
		return nil
	case KeyAutomaticViews:
		b, ok := value.(bool)
		if !ok {
			return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid, "automatic_views must be a bool")
		}
		c.AutomaticViews = b
		return nil
	case KeyViewDir:
		s, ok := value.(string)
		if !ok {
			return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid, "view_dir must be a string")
		}
		if err := validateRelativeDir(s); err != nil {
			return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid, "view_dir: "+err.Error())
		}
		c.ViewDir = s
		return nil
	case KeyViewExt:
		s, ok := value.(string)
		if !ok || !strings.HasPrefix(s, ".") {
			return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid, "view_ext must be a string starting with a dot")
		}
		c.ViewExt = s
		return nil
	case KeyCustomRoutes:
		return nierrors.NewConfigError(nierrors.ErrCodeConfigInvalid,
			"custom_routes is read at load time; register routes on the app instead")
	}

	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = value
	return nil
}

func lookup(values map[string]interface{}, path []string) interface{} {
	if len(path) == 0 {
		return nil
	}
	if value, ok := values[strings.Join(path, ".")]; ok {
		return value
	}
	value, ok := values[path[0]]
	if !ok {
		return nil
	}
	if len(path) == 1 {
		return value
	}
	nested, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return lookup(nested, path[1:])
}

// Address returns host:port for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ViewRoot returns root/view_dir.
func (c *Config) ViewRoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.Root, c.ViewDir)
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying cfg.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the Config attached by the dispatcher, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

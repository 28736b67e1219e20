// Package config loads oro-build settings from TOML or YAML files and
// ORO_* environment variables.
package config

import (
	"errors"
	"time"

	"github.com/dshills/oro/internal/logging"
)

// Config is the full set of oro-build settings.
type Config struct {
	Log    logging.Config `toml:"log" yaml:"log"`
	Search SearchConfig   `toml:"search" yaml:"search"`
	Lua    LuaConfig      `toml:"lua" yaml:"lua"`
	Watch  WatchConfig    `toml:"watch" yaml:"watch"`
}

// SearchConfig controls __ORO__.search_path.
type SearchConfig struct {
	// Delimiter is the default set of search path delimiter characters.
	// Empty means the platform list separator.
	Delimiter string `toml:"delimiter" yaml:"delimiter"`
}

// LuaConfig controls the script runtime.
type LuaConfig struct {
	// PackagePath holds extra package.path templates appended after the
	// root directory ones, e.g. "/usr/share/oro/?.lua".
	PackagePath []string `toml:"package_path" yaml:"package_path"`
}

// WatchConfig controls --watch mode.
type WatchConfig struct {
	// Debounce is the quiet period after the last change before a rebuild.
	Debounce Duration `toml:"debounce" yaml:"debounce"`
	// Include lists glob patterns (matched against base names) that trigger
	// a rebuild.
	Include []string `toml:"include" yaml:"include"`
	// Ignore lists directory base names that are never watched.
	Ignore []string `toml:"ignore" yaml:"ignore"`
}

// DefaultDebounce is the default watch debounce period.
const DefaultDebounce = 200 * time.Millisecond

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{
		Watch: WatchConfig{
			Debounce: Duration(DefaultDebounce),
			Include:  []string{"*.lua"},
			Ignore:   []string{".git", ".oro", "node_modules"},
		},
	}
	c.Log.ApplyDefaults()
	return c
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Log.Validate(); err != nil {
		errs = append(errs, invalid("log: %v", err))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, invalid("watch.debounce must not be negative (got %s)", c.Watch.Debounce))
	}
	for _, p := range c.Lua.PackagePath {
		if p == "" {
			errs = append(errs, invalid("lua.package_path entries must not be empty"))
			break
		}
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration that reads from strings such as "250ms" in
// both TOML and YAML.
type Duration time.Duration

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

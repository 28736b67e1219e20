package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ORO_"

// LookupFunc reports the value of an environment variable. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// envSetter applies one variable to a Config.
type envSetter func(c *Config, value string) error

// envMapping maps variable names (without prefix) to settings.
var envMapping = map[string]envSetter{
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = strings.ToLower(v)
		return nil
	},
	"LOG_FORMAT": func(c *Config, v string) error {
		c.Log.Format = strings.ToLower(v)
		return nil
	},
	"LOG_OUTPUT": func(c *Config, v string) error {
		c.Log.Output = v
		return nil
	},
	"SEARCH_DELIMITER": func(c *Config, v string) error {
		c.Search.Delimiter = v
		return nil
	},
	"WATCH_DEBOUNCE": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Watch.Debounce = Duration(d)
		return nil
	},
}

// EnvVars returns the recognized variable names for the given prefix,
// sorted.
func EnvVars(prefix string) []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, prefix+name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides settings from environment variables named prefix +
// LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, SEARCH_DELIMITER and WATCH_DEBOUNCE.
// Empty values are treated as set. A nil lookup uses os.LookupEnv.
func (c *Config) ApplyEnv(prefix string, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, env := range EnvVars(prefix) {
		val, ok := lookup(env)
		if !ok {
			continue
		}
		if err := envMapping[strings.TrimPrefix(env, prefix)](c, val); err != nil {
			return fmt.Errorf("environment variable %s: %w", env, err)
		}
	}
	return nil
}

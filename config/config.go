package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360/flowkit/errors"
)

// Separator joins the components of a dotted configuration key
const Separator = "."

// Config is an ordered mapping from dotted keys to string values
type Config struct {
	keys   []string
	values map[string]string
}

// New creates an empty configuration
func New() *Config {
	return &Config{
		values: make(map[string]string),
	}
}

// FromMap creates a configuration from a plain map. Keys are inserted in
// sorted order so the result is deterministic.
func FromMap(m map[string]string) *Config {
	cfg := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg.Set(k, m[k])
	}
	return cfg
}

// Set stores a value under key, preserving first-insertion order
func (c *Config) Set(key, value string) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value for key and whether it is present
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetDefault returns the value for key, or def when absent
func (c *Config) GetDefault(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns all keys in insertion order
func (c *Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of stored keys
func (c *Config) Len() int {
	return len(c.keys)
}

// Subset returns a new configuration containing every key under the given
// prefix, with the prefix (and its trailing separator) stripped. Ordering
// is preserved.
func (c *Config) Subset(prefix string) *Config {
	sub := New()
	full := prefix + Separator
	for _, k := range c.keys {
		if strings.HasPrefix(k, full) {
			sub.Set(strings.TrimPrefix(k, full), c.values[k])
		}
	}
	return sub
}

// Merge copies every key from other into c, overwriting existing values.
// Keys new to c are appended in other's order.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		c.Set(k, other.values[k])
	}
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := New()
	for _, k := range c.keys {
		clone.Set(k, c.values[k])
	}
	return clone
}

// GetInt returns the value for key parsed as an integer
func (c *Config) GetInt(key string) (int, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "GetInt", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: key %q value %q is not an integer", errors.ErrBadConfiguration, key, v),
			"Config", "GetInt", "integer parse")
	}
	return n, nil
}

// GetBool returns the value for key parsed as a boolean
func (c *Config) GetBool(key string) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return false, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "GetBool", key)
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.WrapInvalid(
			fmt.Errorf("%w: key %q value %q is not a boolean", errors.ErrBadConfiguration, key, v),
			"Config", "GetBool", "boolean parse")
	}
	return b, nil
}

// GetDuration returns the value for key parsed as a time.Duration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "GetDuration", key)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: key %q value %q is not a duration", errors.ErrBadConfiguration, key, v),
			"Config", "GetDuration", "duration parse")
	}
	return d, nil
}

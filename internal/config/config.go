package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// KnownKeys defines environment variable keys the service recognizes.
var KnownKeys = []string{
	"AUTOCOMPLETE_SERVER_URL",
	"AUTOCOMPLETE_SQLITE_PATH",
	"AUTOCOMPLETE_CHANNELS_FILE",
	"AUTOCOMPLETE_TEMPLATE_DIR",
	"AUTOCOMPLETE_TEMPLATE_CACHE_SIZE",
	"AUTOCOMPLETE_API_TOKEN",
	"AUTOCOMPLETE_LOG_LEVEL",
	"AUTOCOMPLETE_LOG_FORMAT",
	"AUTOCOMPLETE_RATE_LIMIT_RPS",
	"AUTOCOMPLETE_RATE_LIMIT_GLOBAL_RPS",
	"AUTOCOMPLETE_RATE_LIMIT_PATH_RPS",
	"AUTOCOMPLETE_RATE_LIMIT_IP_RPS",
	"AUTOCOMPLETE_DB_SEED",
}

// Dir returns ~/.autocomplete, or "" when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".autocomplete")
}

// LoadAndApply loads ~/.autocomplete/config.yaml (or .yml/.json) and sets
// known keys that are not already in the environment. A missing file is not
// an error; a malformed one is.
func LoadAndApply() error {
	dir := Dir()
	if dir == "" {
		return nil
	}
	return ApplyFrom(dir)
}

// ApplyFrom is LoadAndApply for an explicit directory.
func ApplyFrom(dir string) error {
	data, path, err := load(dir)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	for _, key := range KnownKeys {
		if os.Getenv(key) != "" {
			continue
		}
		if v, ok := lookupInsensitive(data, key); ok {
			if err := os.Setenv(key, toString(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func load(dir string) (map[string]any, string, error) {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(dir, name)
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		// JSON documents are valid YAML.
		var m map[string]any
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, p, err
		}
		return m, p, nil
	}
	return nil, "", nil
}

func lookupInsensitive(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	short := strings.TrimPrefix(key, "AUTOCOMPLETE_")
	for k, v := range m {
		if strings.EqualFold(k, key) || strings.EqualFold(k, short) {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int reads an integer key, falling back to def when unset or malformed.
func Int(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float is Int for floating point values.
func Float(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

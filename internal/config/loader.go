// Package config provides centralized configuration management for finagg.
// Settings are layered with viper: built-in defaults, an optional YAML config
// file, then environment variables. The legacy variable names used by earlier
// finagg releases (BEA_API_KEY, FRED_API_KEY, SEC_API_USER_AGENT, ...) are
// bound alongside their FINAGG_-prefixed equivalents.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

// AppName names the config directory, env prefix and default files.
const AppName = "finagg"

// EnvPrefix is prepended to every automatically bound variable.
const EnvPrefix = "FINAGG"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// legacyEnv maps config keys to the unprefixed variables earlier releases read.
var legacyEnv = map[string][]string{
	"credentials.bea_api_key":        {"BEA_API_KEY"},
	"credentials.fred_api_key":       {"FRED_API_KEY"},
	"credentials.sec_user_agent":     {"SEC_API_USER_AGENT"},
	"credentials.indices_user_agent": {"INDICES_API_USER_AGENT"},
	"store.url":                      {"FINAGG_DATABASE_URL"},
}

// disableCacheEnv turns the HTTP cache off regardless of http_cache.enabled.
const disableCacheEnv = "FINAGG_DISABLE_HTTP_CACHE"

// New returns a viper instance with defaults and environment bindings applied.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root_path", "")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	// Store defaults; an empty path resolves under root_path at load time
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// HTTP cache defaults
	v.SetDefault("http_cache.enabled", true)
	v.SetDefault("http_cache.driver", "store")
	v.SetDefault("http_cache.path", "")
	v.SetDefault("http_cache.ttl", "0s")
	v.SetDefault("http_cache.redis_addr", "localhost:6379")
	v.SetDefault("http_cache.redis_password", "")
	v.SetDefault("http_cache.redis_db", 0)
	v.SetDefault("http_cache.key_prefix", "finagg:http:")

	// Credentials
	v.SetDefault("credentials.bea_api_key", "")
	v.SetDefault("credentials.fred_api_key", "")
	v.SetDefault("credentials.sec_user_agent", "")
	v.SetDefault("credentials.indices_user_agent", "")

	// Rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]any{})
	v.SetDefault("rate_limit_warn", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	// Worker defaults
	v.SetDefault("workers", 4)
}

// BindEnv enables FINAGG_* lookups for every key and binds the legacy names.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes the viper settings into a Config, resolves derived paths and
// validates rate limit overrides. The result becomes the value of GetConfig.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			limitKindHook(),
			secondsDurationHook(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if raw := strings.TrimSpace(os.Getenv(disableCacheEnv)); raw != "" {
		disabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", disableCacheEnv, err)
		}
		if disabled {
			cfg.HTTPCache.Enabled = false
		}
	}

	if err := resolvePaths(cfg); err != nil {
		return nil, err
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if err := validateRateLimits(cfg.RateLimits); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DataDir is where finagg keeps its databases under a root path.
func DataDir(root string) string {
	return filepath.Join(root, "findata")
}

// DefaultStorePath returns the database file under root.
func DefaultStorePath(root string) string {
	return filepath.Join(DataDir(root), AppName+".db")
}

func resolvePaths(cfg *Config) error {
	root := strings.TrimSpace(cfg.RootPath)
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}
	cfg.RootPath = filepath.Clean(root)

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath(cfg.RootPath)
	}
	return nil
}

func validateRateLimits(limits map[string][]ratelimit.Spec) error {
	for family, specs := range limits {
		if len(specs) == 0 {
			return fmt.Errorf("rate_limits.%s: at least one limit is required", family)
		}
		for i, spec := range specs {
			if err := spec.Validate(); err != nil {
				return fmt.Errorf("rate_limits.%s[%d]: %w", family, i, err)
			}
		}
	}
	return nil
}

// limitKindHook lets config files use any alias ParseKind accepts.
func limitKindHook() mapstructure.DecodeHookFuncType {
	kindType := reflect.TypeOf(ratelimit.Kind(""))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != kindType || from.Kind() != reflect.String {
			return data, nil
		}
		return ratelimit.ParseKind(reflect.ValueOf(data).String())
	}
}

// secondsDurationHook reads bare numbers, and numeric strings from env
// vars, as seconds for duration fields. Unit-suffixed strings such as "1m"
// fall through to StringToTimeDurationHookFunc.
func secondsDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		var seconds float64
		value := reflect.ValueOf(data)
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			seconds = float64(value.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			seconds = float64(value.Uint())
		case reflect.Float32, reflect.Float64:
			seconds = value.Float()
		case reflect.String:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
			if err != nil {
				return data, nil
			}
			seconds = parsed
		default:
			return data, nil
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
}

// Package apporbit contains shared application-level configuration for the
// AppOrbit product discovery platform: the client SDK under client/, the
// reference API server under server/, and the supporting storage and eventbus
// packages.
package apporbit

import (
	"net"
	"time"

	"github.com/apporbit/apporbit/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "apporbit.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
// This is re-exported from internal/config for public API use.
type ConfigKeyInfo = config.ConfigKeyInfo

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Built-in defaults (in init())
// 2. Auto-discovered apporbit.yaml (in init())
// 3. Environment variables with AO__ prefix (in init())
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - AO__SERVER__PORT → server.port
//   - AO__API__BASE_URL → api.baseUrl (underscores become camelCase)
var Config = koanf.New(".")

const (
	defaultPort = "8000"
	defaultHost = "localhost"
)

func init() {
	registerCoreConfigKeys()

	// Look for an apporbit.yaml file in the current directory or any parent.
	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	// Load environment variables with the prefix AO__.
	if err := Config.Load(env.Provider("AO__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey registers a known configuration key with metadata. This
// should be called by packages to document expected config keys, so that
// typos in deployed configuration produce "did you mean" warnings.
func RegisterConfigKey(info ConfigKeyInfo) {
	config.RegisterConfigKey(info)
}

// RegisterConfigKeys registers multiple configuration keys at once.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	config.RegisterConfigKeys(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance. Call this before constructing the server or client
// to load deployment-specific configuration.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads default configuration values into the global
// Config instance. Defaults can be overridden by files or env vars.
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// EnsureConfigDefaults applies registered key defaults for any key that has
// not been set by a file or the environment. Called by entry points after all
// init() functions have run.
func EnsureConfigDefaults() {
	config.EnsureDefaultsLoaded(Config)
}

// ValidateConfigKeys checks all loaded configuration keys against the
// registry and returns human readable warnings for unknown keys.
func ValidateConfigKeys() []string {
	warnings := config.ValidateConfigKeys(Config)
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key.
// Duration strings like "5m", "1h", "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

// ConfigBytes returns the byte slice value for the given key.
func ConfigBytes(key string) []byte {
	return Config.Bytes(key)
}

// ConfigExists checks if the given key exists in the configuration.
func ConfigExists(key string) bool {
	return Config.Exists(key)
}

// registerCoreConfigKeys registers all core configuration keys with their
// defaults. Called from init() before any config loading happens.
func registerCoreConfigKeys() {
	config.RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "name",
			Description: "User-facing name that identifies the service",
			Type:        "string",
			Default:     "AppOrbit",
		},
		ConfigKeyInfo{
			Key:         "api.baseUrl",
			Description: "Base URL of the AppOrbit backend API (required by the client SDK)",
			Type:        "string",
		},

		// Client SDK configuration.
		ConfigKeyInfo{
			Key:         "client.tokenFile",
			Description: "Path used to persist the bearer token across restarts (empty = in-memory only)",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "client.roleMaxAge",
			Description: "How long a resolved role may be served from cache (0 = always refetch)",
			Type:        "duration",
			Default:     "0s",
		},

		// Server configuration.
		ConfigKeyInfo{
			Key:         "server.host",
			Description: "Host to bind the server to",
			Type:        "string",
			Default:     defaultHost,
		},
		ConfigKeyInfo{
			Key:         "server.port",
			Description: "Port to bind the server to",
			Type:        "int",
			Default:     defaultPort,
		},

		// Token issuance.
		ConfigKeyInfo{
			Key:         "auth.signingKey",
			Description: "HMAC key used to sign issued bearer tokens (required by the server)",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "auth.tokenExpiry",
			Description: "Lifetime of issued bearer tokens",
			Type:        "duration",
			Default:     "720h",
		},
		ConfigKeyInfo{
			Key:         "auth.adminEmails",
			Description: "Accounts granted the admin role when first created",
			Type:        "[]string",
		},

		// Storage backend.
		ConfigKeyInfo{
			Key:         "storage.driver",
			Description: "Storage backend: memory, sqlite or postgres",
			Type:        "string",
			Default:     "memory",
		},
		ConfigKeyInfo{
			Key:         "storage.dsn",
			Description: "Connection string for sqlite or postgres storage",
			Type:        "string",
		},
	)
}

// Address returns the host:port pair the server binds to.
func Address() string {
	return net.JoinHostPort(Config.String("server.host"), Config.String("server.port"))
}

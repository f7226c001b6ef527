package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime publishes the values other packages may query while the
// daemon runs. Called once at startup after merging file, env and flags.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	runtimeCfg = rc
	runtimeMu.Unlock()
}

func currentRuntime() *RuntimeConfig {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeCfg
}

// GetAPIToken returns the configured local API token, empty when auth is
// disabled.
func GetAPIToken() string {
	rc := currentRuntime()
	if rc == nil {
		return ""
	}
	return rc.APIToken
}

// GetAllowedOrigins returns a copy of the configured CORS origins.
func GetAllowedOrigins() []string {
	rc := currentRuntime()
	if rc == nil || len(rc.AllowedOrigins) == 0 {
		return nil
	}
	out := make([]string, len(rc.AllowedOrigins))
	copy(out, rc.AllowedOrigins)
	return out
}

// Addr returns host:port for the local API server. The default binds
// loopback only; this daemon serves one UI on the same machine.
func (c *Config) Addr() string {
	host := c.Server.Address
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port == 0 {
		port = 7700
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Load reads and parses the YAML config at path. A missing file is
// returned as-is so callers can distinguish it from a malformed one.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath picks the config file path: an explicitly set flag
// wins, then ROOSTDB_CONFIG, then the flag's default value.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("ROOSTDB_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

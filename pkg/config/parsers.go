package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EnvResult describes the outcome of reading environment overrides.
type EnvResult struct {
	EnvUsed bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", "127.0.0.1:7700", "local API listen address")
	dbPtr := flag.String("db", "./.roostdb", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads ROOSTDB_* environment variables into a fresh
// Config and reports whether any were present. It does not mutate any
// caller-provided config.
func ParseConfigEnvs() (*Config, EnvResult) {
	envCfg := &Config{}
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("ROOSTDB_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("ROOSTDB_SERVER_ADDRESS"); host != "" {
			envUsed = true
			envCfg.Server.Address = host
		}
		if port := os.Getenv("ROOSTDB_SERVER_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				envCfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("ROOSTDB_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Storage.DBPath = v
	} else if v := os.Getenv("ROOSTDB_STORAGE_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Storage.DBPath = v
	}

	if v := os.Getenv("ROOSTDB_ACCOUNT_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			envUsed = true
			envCfg.Account.UserID = id
		}
	}
	if v := os.Getenv("ROOSTDB_ACCOUNT_HANDLE"); v != "" {
		envUsed = true
		envCfg.Account.Handle = strings.TrimPrefix(strings.TrimSpace(v), "@")
	}

	if v := os.Getenv("ROOSTDB_REMOTE_BASE_URL"); v != "" {
		envUsed = true
		envCfg.Remote.BaseURL = v
	}
	if v := os.Getenv("ROOSTDB_CONSUMER_KEY"); v != "" {
		envUsed = true
		envCfg.Remote.ConsumerKey = v
	}
	if v := os.Getenv("ROOSTDB_CONSUMER_SECRET"); v != "" {
		envUsed = true
		envCfg.Remote.ConsumerSecret = v
	}
	if v := os.Getenv("ROOSTDB_ACCESS_TOKEN"); v != "" {
		envUsed = true
		envCfg.Remote.AccessToken = v
	}
	if v := os.Getenv("ROOSTDB_ACCESS_SECRET"); v != "" {
		envUsed = true
		envCfg.Remote.AccessSecret = v
	}
	if v := os.Getenv("ROOSTDB_REMOTE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.Remote.RPS = f
		}
	}
	if v := os.Getenv("ROOSTDB_REMOTE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Remote.Burst = n
		}
	}

	if v := os.Getenv("ROOSTDB_TRANSLATE_ENDPOINT"); v != "" {
		envUsed = true
		envCfg.Translate.Endpoint = v
	}
	if v := os.Getenv("ROOSTDB_TRANSLATE_LANG"); v != "" {
		envUsed = true
		envCfg.Translate.TargetLang = v
	}

	if v := os.Getenv("ROOSTDB_API_TOKEN"); v != "" {
		envUsed = true
		envCfg.Security.APIToken = v
	}
	if v := os.Getenv("ROOSTDB_CORS_ORIGINS"); v != "" {
		envUsed = true
		envCfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("ROOSTDB_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("ROOSTDB_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("ROOSTDB_LOG_LEVEL"); v != "" {
		envUsed = true
		envCfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}

	return envCfg, EnvResult{EnvUsed: envUsed}
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config plus resolved addr and
// dbPath. An explicit --config requires the file to exist and uses it;
// otherwise explicit addr/db flags win; otherwise the file when present;
// otherwise env. Account identity and remote credentials are secrets and
// overlay from env regardless of the chosen source when the source left
// them empty.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	switch {
	case flags.Set["config"]:
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Source = "config"
	case flags.Set["addr"] || flags.Set["db"]:
		out := &Config{}
		if fileExists {
			*out = *fileCfg
		} else if envRes.EnvUsed {
			*out = *envCfg
		}
		if flags.Set["addr"] {
			out.Server.Address, out.Server.Port = splitAddr(flags.Addr)
		}
		if flags.Set["db"] {
			out.Storage.DBPath = flags.DB
		}
		res.Config = out
		res.Source = "flags"
	case fileExists:
		res.Config = fileCfg
		res.Source = "config"
	default:
		res.Config = envCfg
		res.Source = "env"
	}

	overlaySecrets(res.Config, envCfg)
	res.Addr = res.Config.Addr()
	res.DBPath = res.Config.Storage.DBPath
	return res, nil
}

// overlaySecrets copies env-provided credentials and identity into cfg
// for any field cfg leaves empty.
func overlaySecrets(cfg, env *Config) {
	if cfg == env {
		return
	}
	if cfg.Remote.ConsumerKey == "" {
		cfg.Remote.ConsumerKey = env.Remote.ConsumerKey
	}
	if cfg.Remote.ConsumerSecret == "" {
		cfg.Remote.ConsumerSecret = env.Remote.ConsumerSecret
	}
	if cfg.Remote.AccessToken == "" {
		cfg.Remote.AccessToken = env.Remote.AccessToken
	}
	if cfg.Remote.AccessSecret == "" {
		cfg.Remote.AccessSecret = env.Remote.AccessSecret
	}
	if cfg.Account.UserID == 0 {
		cfg.Account.UserID = env.Account.UserID
	}
	if cfg.Account.Handle == "" {
		cfg.Account.Handle = env.Account.Handle
	}
	if cfg.Security.APIToken == "" {
		cfg.Security.APIToken = env.Security.APIToken
	}
}

// splitAddr extracts host and port from a host:port string.
func splitAddr(a string) (string, int) {
	if a == "" {
		return "", 0
	}
	if h, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return h, pi
		}
		return h, 0
	}
	return a, 0
}

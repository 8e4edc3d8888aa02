package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// envPrefix is the environment namespace; section and key are joined with
// "__", e.g. SECURE_RPC__RPC__LISTEN_ADDR.
const envPrefix = "SECURE_RPC"

// Load reads the TOML file at path, applies environment overrides, and
// validates the result.
func Load(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from TOML bytes, applies environment
// overrides, and validates the result.
func Parse(data []byte) (*ServiceConfig, error) {
	cfg := Default()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from the environment. The mapping is
// flat and explicit; list values are comma-separated.
func applyEnv(cfg *ServiceConfig) error {
	var err error

	envString("DATA_DIR", &cfg.DataDir)

	envString("RPC__LISTEN_ADDR", &cfg.RPC.ListenAddr)
	envString("RPC__PROXY_TO_URL", &cfg.RPC.ProxyToURL)
	envString("RPC__ADMIN_ADDR", &cfg.RPC.AdminAddr)
	if v, ok := lookup("RPC__MAX_BODY_SIZE_BYTES"); ok {
		cfg.RPC.MaxBodySizeBytes, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s__RPC__MAX_BODY_SIZE_BYTES: %w", envPrefix, err)
		}
	}
	if v, ok := lookup("RPC__REQUEST_TIMEOUT_SECS"); ok {
		cfg.RPC.RequestTimeoutSecs, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s__RPC__REQUEST_TIMEOUT_SECS: %w", envPrefix, err)
		}
	}

	envStrings("FIREWALL__ALLOW_IPS", &cfg.Firewall.AllowIPs)
	envStrings("FIREWALL__ALLOW_ACCOUNTS", &cfg.Firewall.AllowAccounts)
	if err := envBool("FIREWALL__ALLOW_UNRESTRICTED_ACCESS", &cfg.Firewall.AllowUnrestrictedAccess); err != nil {
		return err
	}
	if err := envBool("FIREWALL__NOTIFY_ON_SWEEP", &cfg.Firewall.NotifyOnSweep); err != nil {
		return err
	}

	envStrings("WEBHOOKS__EVENT_URLS", &cfg.Webhooks.EventURLs)

	envString("LOG__LEVEL", &cfg.Log.Level)
	envString("LOG__OUTPUT", &cfg.Log.Output)

	return nil
}

func lookup(key string) (string, bool) {
	return os.LookupEnv(envPrefix + "__" + key)
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envStrings(key string, dst *[]string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if v == "" {
		*dst = nil
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func envBool(key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s__%s: %w", envPrefix, key, err)
	}
	*dst = parsed
	return nil
}

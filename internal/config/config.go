// Package config loads and validates the gateway's static policy and
// endpoint settings from a TOML file, with environment overrides.
package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/account"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/firewall"
)

const (
	// DefaultMaxBodySizeBytes bounds proxied request bodies (10 MiB).
	DefaultMaxBodySizeBytes = 10 * 1024 * 1024
	// DefaultRequestTimeoutSecs bounds each proxied HTTP request.
	DefaultRequestTimeoutSecs = 30
)

// ServiceConfig is the root configuration. Immutable after Load.
type ServiceConfig struct {
	DataDir  string         `toml:"data_dir"`
	RPC      RPCConfig      `toml:"rpc"`
	Firewall FirewallConfig `toml:"firewall"`
	Webhooks WebhookConfig  `toml:"webhooks"`
	Log      LogConfig      `toml:"log"`

	resolved resolved
}

// RPCConfig configures the gateway endpoint.
type RPCConfig struct {
	ListenAddr         string `toml:"listen_addr"`
	ProxyToURL         string `toml:"proxy_to_url"`
	MaxBodySizeBytes   int64  `toml:"max_body_size_bytes"`
	RequestTimeoutSecs uint64 `toml:"request_timeout_secs"`
	// AdminAddr optionally serves /metrics and /healthz on a second listener.
	AdminAddr string `toml:"admin_addr"`
}

// FirewallConfig is the static access-control policy.
type FirewallConfig struct {
	AllowIPs                []string `toml:"allow_ips"`      // CIDR or bare IP
	AllowAccounts           []string `toml:"allow_accounts"` // SS58 account ids
	AllowUnrestrictedAccess bool     `toml:"allow_unrestricted_access"`
	// NotifyOnSweep makes the periodic sweep emit TemporaryAccessExpired
	// events for the grants it removes. Off by default: the per-account
	// event normally fires from the allow-check that observes the expiry.
	NotifyOnSweep bool `toml:"notify_on_sweep"`
}

// WebhookConfig lists the audit event sinks registered at startup.
type WebhookConfig struct {
	EventURLs []string `toml:"event_urls"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level      string `toml:"level"`
	Output     string `toml:"output"` // stdout, stderr, or file path
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// resolved holds the validated, parsed forms of string config values.
type resolved struct {
	proxyURL      *url.URL
	allowIPs      []*net.IPNet
	allowAccounts []account.AccountID
	eventURLs     []*url.URL
}

// Default returns a config populated with defaults.
func Default() *ServiceConfig {
	return &ServiceConfig{
		RPC: RPCConfig{
			MaxBodySizeBytes:   DefaultMaxBodySizeBytes,
			RequestTimeoutSecs: DefaultRequestTimeoutSecs,
		},
		Log: LogConfig{
			Level:      "info",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks the configuration and caches the parsed forms.
func (c *ServiceConfig) Validate() error {
	if c.RPC.ListenAddr == "" {
		return fmt.Errorf("rpc.listen_addr is required")
	}
	if _, _, err := net.SplitHostPort(c.RPC.ListenAddr); err != nil {
		return fmt.Errorf("invalid rpc.listen_addr %q: %w", c.RPC.ListenAddr, err)
	}
	if c.RPC.AdminAddr != "" {
		if _, _, err := net.SplitHostPort(c.RPC.AdminAddr); err != nil {
			return fmt.Errorf("invalid rpc.admin_addr %q: %w", c.RPC.AdminAddr, err)
		}
	}

	if c.RPC.ProxyToURL == "" {
		return fmt.Errorf("rpc.proxy_to_url is required")
	}
	proxyURL, err := url.Parse(c.RPC.ProxyToURL)
	if err != nil {
		return fmt.Errorf("invalid rpc.proxy_to_url %q: %w", c.RPC.ProxyToURL, err)
	}
	switch proxyURL.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("rpc.proxy_to_url scheme must be http, https, ws or wss, got %q", proxyURL.Scheme)
	}
	if proxyURL.Host == "" {
		return fmt.Errorf("rpc.proxy_to_url %q has no host", c.RPC.ProxyToURL)
	}

	if c.RPC.MaxBodySizeBytes <= 0 {
		return fmt.Errorf("rpc.max_body_size_bytes must be positive, got %d", c.RPC.MaxBodySizeBytes)
	}
	if c.RPC.RequestTimeoutSecs == 0 {
		return fmt.Errorf("rpc.request_timeout_secs must be positive")
	}

	allowIPs := make([]*net.IPNet, 0, len(c.Firewall.AllowIPs))
	for _, s := range c.Firewall.AllowIPs {
		prefix, err := firewall.ParsePrefix(s)
		if err != nil {
			return fmt.Errorf("invalid firewall.allow_ips entry %q: %w", s, err)
		}
		allowIPs = append(allowIPs, prefix)
	}

	allowAccounts := make([]account.AccountID, 0, len(c.Firewall.AllowAccounts))
	for _, s := range c.Firewall.AllowAccounts {
		id, err := account.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid firewall.allow_accounts entry %q: %w", s, err)
		}
		allowAccounts = append(allowAccounts, id)
	}

	eventURLs := make([]*url.URL, 0, len(c.Webhooks.EventURLs))
	for _, s := range c.Webhooks.EventURLs {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid webhooks.event_urls entry %q: %w", s, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("webhooks.event_urls entry %q must use http or https", s)
		}
		eventURLs = append(eventURLs, u)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	c.resolved = resolved{
		proxyURL:      proxyURL,
		allowIPs:      allowIPs,
		allowAccounts: allowAccounts,
		eventURLs:     eventURLs,
	}
	return nil
}

// ProxyURL returns the parsed backend URL. Valid after Validate.
func (c *ServiceConfig) ProxyURL() *url.URL {
	return c.resolved.proxyURL
}

// AllowIPs returns the parsed static allow prefixes. Valid after Validate.
func (c *ServiceConfig) AllowIPs() []*net.IPNet {
	return c.resolved.allowIPs
}

// AllowAccounts returns the parsed static allow accounts. Valid after Validate.
func (c *ServiceConfig) AllowAccounts() []account.AccountID {
	return c.resolved.allowAccounts
}

// EventURLs returns the parsed webhook sinks. Valid after Validate.
func (c *ServiceConfig) EventURLs() []*url.URL {
	return c.resolved.eventURLs
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *ServiceConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RPC.RequestTimeoutSecs) * time.Second
}

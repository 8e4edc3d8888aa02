package gateway

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/config"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/firewall"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/webhook"
)

// adminKeyFile is the optional hex-encoded ed25519 seed inside the data dir.
const adminKeyFile = "admin.key"

// Context is the process-wide bundle shared by the proxy handlers, the job
// handlers, and the cleanup task. All of them hold the same reference; the
// firewall inside carries its own locking.
type Context struct {
	Config   *config.ServiceConfig
	Firewall *firewall.Firewall
	DataDir  string
	Logger   *zap.Logger

	// AdminKey is reserved for future admin-authorization hooks on the
	// allow_access job. Nil when no key file is present.
	AdminKey ed25519.PrivateKey
}

// NewContext builds the shared context: resolves and creates the data
// directory, loads the optional admin key, and constructs the firewall from
// the static config. A nil logger disables logging.
func NewContext(cfg *config.ServiceConfig, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".secure-rpc-gateway")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create data directory %s: %w", dataDir, err)
	}

	adminKey, err := loadAdminKey(filepath.Join(dataDir, adminKeyFile))
	if err != nil {
		return nil, err
	}

	notifier := webhook.NewNotifier(logger)
	fw := firewall.New(firewall.Config{
		AllowIPs:      cfg.AllowIPs(),
		AllowAccounts: cfg.AllowAccounts(),
		Unrestricted:  cfg.Firewall.AllowUnrestrictedAccess,
		Webhooks:      cfg.EventURLs(),
		NotifyOnSweep: cfg.Firewall.NotifyOnSweep,
	}, notifier, logger)

	logger.Info("service context created",
		zap.String("data_dir", dataDir),
		zap.Bool("admin_key_loaded", adminKey != nil),
		zap.Int("static_ip_rules", len(cfg.AllowIPs())),
		zap.Int("static_account_rules", len(cfg.AllowAccounts())),
		zap.Int("webhooks", len(cfg.EventURLs())))

	return &Context{
		Config:   cfg,
		Firewall: fw,
		DataDir:  dataDir,
		Logger:   logger,

		AdminKey: adminKey,
	}, nil
}

// Log returns the context logger, or a no-op logger when none was attached.
func (c *Context) Log() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// loadAdminKey reads a hex-encoded ed25519 seed. A missing file is not an
// error; the admin identity is optional.
func loadAdminKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read admin key %s: %w", path, err)
	}

	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("admin key %s is not valid hex: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("admin key %s must be a %d-byte seed, got %d", path, ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

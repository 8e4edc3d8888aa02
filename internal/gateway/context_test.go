package gateway

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/config"
)

func testConfig(t *testing.T, dataDir string) *config.ServiceConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(`
data_dir = "` + dataDir + `"

[rpc]
listen_addr = "127.0.0.1:0"
proxy_to_url = "http://backend:9944"
`))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewContextCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	ctx, err := NewContext(testConfig(t, dataDir), nil)
	if err != nil {
		t.Fatal(err)
	}

	if ctx.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", ctx.DataDir, dataDir)
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("data dir is not a directory")
	}
	if ctx.Firewall == nil {
		t.Error("firewall not constructed")
	}
	if ctx.AdminKey != nil {
		t.Error("admin key should be nil without a key file")
	}
}

func TestNewContextLoadsAdminKey(t *testing.T) {
	dataDir := t.TempDir()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	keyPath := filepath.Join(dataDir, adminKeyFile)
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, err := NewContext(testConfig(t, dataDir), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := ed25519.NewKeyFromSeed(seed)
	if !want.Equal(ctx.AdminKey) {
		t.Error("loaded admin key does not match seed")
	}
}

func TestNewContextRejectsBadAdminKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not hex", "zzzz"},
		{"wrong length", "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			keyPath := filepath.Join(dataDir, adminKeyFile)
			if err := os.WriteFile(keyPath, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			if _, err := NewContext(testConfig(t, dataDir), nil); err == nil {
				t.Error("NewContext succeeded with invalid admin key")
			}
		})
	}
}

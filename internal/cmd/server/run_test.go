package serverrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/restatedev/pubsub/internal/config"
	pebblestore "github.com/restatedev/pubsub/internal/storage/pebble"
)

func TestGetenvDefault(t *testing.T) {
	_ = os.Setenv("PUBSUB_TEST_VAR", "env_value")
	t.Cleanup(func() { _ = os.Unsetenv("PUBSUB_TEST_VAR") })
	if got := getenvDefault("PUBSUB_TEST_VAR", "default"); got != "env_value" {
		t.Fatalf("got %q, want env_value", got)
	}
	if got := getenvDefault("PUBSUB_TEST_VAR_NOT_SET", "default"); got != "default" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestOptionsDataDirFallback(t *testing.T) {
	opts := Options{DataDir: ""}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.DataDir == "" {
		t.Fatal("DataDir should be set after fallback")
	}

	opts = Options{DataDir: "/custom/data"}
	if opts.DataDir != "/custom/data" {
		t.Fatalf("provided DataDir not preserved: %s", opts.DataDir)
	}
}

func TestDataDirStoreSubdirectory(t *testing.T) {
	storeDir := filepath.Join("/tmp/pubsub", "store")
	if storeDir != "/tmp/pubsub/store" {
		t.Fatalf("store dir = %s", storeDir)
	}
}

// TestRunIntegration verifies Run starts and shuts down cleanly. Minimal by
// design since Run binds a real listener.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	opts := Options{
		DataDir:       t.TempDir(),
		HTTPAddr:      "127.0.0.1:0",
		Fsync:         pebblestore.FsyncModeNever,
		FsyncInterval: time.Millisecond,
		Config:        cfgpkg.Default(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := Run(ctx, opts); err != nil {
		t.Fatalf("run: %v", err)
	}
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"VKTIMING_SERVER_ADDRESS", "VKTIMING_SERVER_PORT", "VKTIMING_NODENAME", "VKTIMING_SYNC_INTERVAL_MS", "VKTIMING_MAX_QUERIES", "VKTIMING_SYNC_POLL_BUDGET"} {
		os.Unsetenv(k)
	}

	cfg := LoadConfig()
	if cfg.ServerAdress != defaultServerAddress {
		t.Errorf("ServerAdress = %q, want %q", cfg.ServerAdress, defaultServerAddress)
	}
	if cfg.MaxQueries != defaultMaxQueries {
		t.Errorf("MaxQueries = %d, want %d", cfg.MaxQueries, defaultMaxQueries)
	}
	if cfg.SyncInterval != defaultSyncInterval {
		t.Errorf("SyncInterval = %v, want %v", cfg.SyncInterval, defaultSyncInterval)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	os.Setenv("VKTIMING_SERVER_ADDRESS", "10.0.0.1")
	os.Setenv("VKTIMING_SYNC_INTERVAL_MS", "250")
	os.Setenv("VKTIMING_MAX_QUERIES", "1024")
	defer func() {
		os.Unsetenv("VKTIMING_SERVER_ADDRESS")
		os.Unsetenv("VKTIMING_SYNC_INTERVAL_MS")
		os.Unsetenv("VKTIMING_MAX_QUERIES")
	}()

	cfg := LoadConfig()
	if cfg.ServerAdress != "10.0.0.1" {
		t.Errorf("ServerAdress override not applied: got %q", cfg.ServerAdress)
	}
	if cfg.SyncInterval != 250*time.Millisecond {
		t.Errorf("SyncInterval override not applied: got %v", cfg.SyncInterval)
	}
	if cfg.MaxQueries != 1024 {
		t.Errorf("MaxQueries override not applied: got %d", cfg.MaxQueries)
	}
}

func TestLoadConfigIgnoresInvalidOverrides(t *testing.T) {
	os.Setenv("VKTIMING_MAX_QUERIES", "not-a-number")
	defer os.Unsetenv("VKTIMING_MAX_QUERIES")

	cfg := LoadConfig()
	if cfg.MaxQueries != defaultMaxQueries {
		t.Errorf("expected an invalid override to be ignored, got %d", cfg.MaxQueries)
	}
}

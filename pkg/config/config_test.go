package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Store.NormalizedDriver() != StoreDriverFile {
		t.Fatalf("expected file store by default, got %q", cfg.Store.Driver)
	}
	if cfg.Remote.BaseURL != "https://api.example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}
	if got := cfg.Outbox.StaleAfter; got != 2*time.Minute {
		t.Fatalf("expected stale threshold 2m, got %v", got)
	}
	if got := cfg.Notifications.PollInterval; got != 30*time.Second {
		t.Fatalf("expected poll interval 30s, got %v", got)
	}
	if got := cfg.Notifications.ToastDuration; got != 3500*time.Millisecond {
		t.Fatalf("expected toast duration 3.5s, got %v", got)
	}
	if cfg.JWT.Enabled() {
		t.Fatal("expected auth disabled without secret")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvNotifyIDs, "12,34")
	t.Setenv(EnvFlushInterval, "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.Notifications.EmployeeIDs) != 2 || cfg.Notifications.EmployeeIDs[1] != "34" {
		t.Fatalf("unexpected employee ids %v", cfg.Notifications.EmployeeIDs)
	}
	if cfg.Outbox.FlushInterval != 5*time.Second {
		t.Fatalf("unexpected flush interval %v", cfg.Outbox.FlushInterval)
	}
}

func TestLoad_MissingRemote(t *testing.T) {
	setMinimalEnv(t)
	unsetEnv(t, EnvRemoteBaseURL)

	if _, err := Load(); err == nil {
		t.Fatal("expected missing remote base url to return an error")
	}
}

func TestLoad_SQLStoreRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite store without dsn to fail")
	}

	t.Setenv(EnvDBDSN, "file::memory:?cache=shared")
	if _, err := Load(); err != nil {
		t.Fatalf("expected sqlite store with dsn to load, got %v", err)
	}
}

func TestLoad_RedisStoreRequiresEndpoint(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected redis store without endpoint to fail")
	}
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("expected redis store to load, got %v", err)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "floppy")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvRemoteBaseURL, "https://api.example.test/")
	for _, key := range []string{EnvStoreDriver, EnvDBDSN, EnvRedisURL, EnvRedisAddr, EnvNotifyIDs, EnvFlushInterval, EnvJWTSecret} {
		unsetEnv(t, key)
	}
}

// unsetEnv clears key for the duration of the test; t.Setenv restores the old value afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() || devConfig.IsProd() {
		t.Fatalf("unexpected env helpers for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() || prodConfig.IsDev() {
		t.Fatalf("unexpected env helpers for %q", prodConfig.Env)
	}
}

func TestResolveProbeURL(t *testing.T) {
	remote := RemoteConfig{BaseURL: "https://api.example.test"}
	if got := (ConnectivityConfig{}).ResolveProbeURL(remote); got != "https://api.example.test/health" {
		t.Fatalf("unexpected probe url %q", got)
	}
	if got := (ConnectivityConfig{ProbeURL: "https://status.example.test"}).ResolveProbeURL(remote); got != "https://status.example.test" {
		t.Fatalf("unexpected explicit probe url %q", got)
	}
}

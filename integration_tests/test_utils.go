//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ni/internal/server"
)

// TestServerConfig contains configuration for waiting on a test server
type TestServerConfig struct {
	ReadinessTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultTestConfig returns a default test configuration
func DefaultTestConfig() *TestServerConfig {
	return &TestServerConfig{
		ReadinessTimeout:    TestTimeout(),
		HealthCheckInterval: 50 * time.Millisecond,
	}
}

// HealthResponse is the part of the /healthz body the tests look at
type HealthResponse struct {
	Status string                     `json:"status"`
	Checks map[string]json.RawMessage `json:"checks"`
}

// StartTestServer runs srv until the test ends and returns its base URL
// once /healthz reports healthy.
func StartTestServer(t *testing.T, srv *server.Server) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err, "server did not shut down cleanly")
		case <-time.After(TestTimeout()):
			t.Error("server did not stop")
		}
	})

	cfg := DefaultTestConfig()
	deadline := time.Now().Add(cfg.ReadinessTimeout)
	for srv.Addr() == "127.0.0.1:0" {
		require.True(t, time.Now().Before(deadline), "server never bound a port")
		time.Sleep(cfg.HealthCheckInterval)
	}

	baseURL := "http://" + srv.Addr()
	require.NoError(t, WaitForServerReadiness(ctx, baseURL, cfg))
	return baseURL
}

// WaitForServerReadiness polls /healthz until it answers healthy
func WaitForServerReadiness(ctx context.Context, baseURL string, config *TestServerConfig) error {
	if config == nil {
		config = DefaultTestConfig()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(config.HealthCheckInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("server readiness timeout after %v: %w", config.ReadinessTimeout, lastErr)
		case <-ticker.C:
			if lastErr = checkServerHealth(baseURL); lastErr == nil {
				return nil
			}
		}
	}
}

func checkServerHealth(baseURL string) error {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("server status is %s", health.Status)
	}
	return nil
}

// Get fetches url and returns the response with its body read.
func Get(t *testing.T, method, url string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// WriteTree creates files under root, making parent directories as needed
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "Failed to create %s", name)
	}
}

// TestTimeout returns appropriate test timeout based on testing mode
func TestTimeout() time.Duration {
	if testing.Short() {
		return 5 * time.Second
	}
	return 30 * time.Second
}

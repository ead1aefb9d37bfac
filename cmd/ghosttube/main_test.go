package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GHOSTTUBE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidDeviceID verifies device ids are rejected at startup.
func TestRun_InvalidDeviceID(t *testing.T) {
	t.Setenv("GHOSTTUBE_CONFIG", writeConfig(t, `
device:
  id: "Living Room"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an invalid device id")
	}
}

// TestRun_AgentPortInUse verifies a listen failure stops startup.
func TestRun_AgentPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	t.Setenv("GHOSTTUBE_CONFIG", writeConfig(t, fmt.Sprintf(`
device:
  id: tv
mqtt:
  broker:
    host: 127.0.0.1
    port: %d
agent:
  host: 127.0.0.1
  port: %d
logging:
  level: error
  format: text
`, freePort(t), port)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the agent port is taken")
	}
}

// TestRun_StartsWithoutBroker verifies the bridge comes up and shuts down
// cleanly while the broker is unreachable.
func TestRun_StartsWithoutBroker(t *testing.T) {
	agentPort := freePort(t)

	t.Setenv("GHOSTTUBE_CONFIG", writeConfig(t, fmt.Sprintf(`
device:
  id: living-room-tv
  name: Living Room TV
mqtt:
  broker:
    host: 127.0.0.1
    port: %d
  connect_timeout: 1
agent:
  host: 127.0.0.1
  port: %d
influxdb:
  enabled: false
logging:
  level: error
  format: text
`, freePort(t), agentPort)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", agentPort)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(healthURL)
		if err == nil {
			var body map[string]string
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if decodeErr != nil || body["status"] != "ok" {
				t.Fatalf("health body = %v (err %v)", body, decodeErr)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never became healthy: %v", err)
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GHOSTTUBE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GHOSTTUBE_CONFIG", "/etc/ghosttube.yaml")
	if got := getConfigPath(); got != "/etc/ghosttube.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/ghosttube.yaml", got)
	}
}

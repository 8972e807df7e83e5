package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/groupxyz/media-relay/internal/app"
)

const (
	serverBinary       = "media-relay-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// readiness is the body of GET /ready
type readiness struct {
	Status string           `json:"status"`
	Tools  []app.ToolStatus `json:"tools"`
}

// missing lists the tools the server could not run, with the reason when it has one
func (r *readiness) missing() []string {
	var out []string
	for _, t := range r.Tools {
		if t.Available {
			continue
		}
		if t.Error != "" {
			out = append(out, fmt.Sprintf("%s (%s)", t.Tool, t.Error))
		} else {
			out = append(out, t.Tool)
		}
	}
	return out
}

func isServerRunning() bool {
	client := httpClient()
	client.Timeout = time.Second
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// checkReadiness asks the server which external tools it can run.
// 503 is a valid answer: the server is up but some tools are missing.
func checkReadiness() (*readiness, error) {
	client := httpClient()
	client.Timeout = 5 * time.Second
	resp, err := client.Get(serverURL + "/ready")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("unexpected status %d from /ready", resp.StatusCode)
	}
	var r readiness
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("unexpected /ready response: %w", err)
	}
	return &r, nil
}

// serverEnv returns the environment that makes a spawned server listen where target points.
// Only loopback targets can be started from here.
func serverEnv(target string) ([]string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", target)
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, fmt.Errorf("%s is not a local address, start the server on that host", host)
	}

	useTLS := u.Scheme == "https"
	port := u.Port()
	if port == "" {
		port = "80"
		if useTLS {
			port = "443"
		}
	}
	return []string{
		app.EnvPrefix + "_SERVER_PORT=" + port,
		app.EnvPrefix + "_SERVER_TLS_ENABLED=" + strconv.FormatBool(useTLS),
	}, nil
}

// serverArgs passes the CLI's --config through to the server
func serverArgs(configPath string) []string {
	if configPath == "" {
		return nil
	}
	return []string{"-config", configPath}
}

// findServerBinary looks next to the CLI, then on PATH, then in the usual install dirs
func findServerBinary() (string, error) {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), serverBinary))
	}
	if p, err := exec.LookPath(serverBinary); err == nil {
		candidates = append(candidates, p)
	}
	home := os.Getenv("HOME")
	candidates = append(candidates,
		"/usr/local/bin/"+serverBinary,
		filepath.Join(home, "go", "bin", serverBinary),
		filepath.Join(home, ".local", "bin", serverBinary),
	)

	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s binary not found", serverBinary)
}

func startServerBackground() error {
	env, err := serverEnv(serverURL)
	if err != nil {
		return err
	}
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(serverPath, serverArgs(serverConfig)...)
	cmd.Env = append(os.Environ(), env...)
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	go cmd.Wait()
	return nil
}

func waitForServer() error {
	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerRunning() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// ensureServerRunning starts a local server when none answers and reports tools it cannot run
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := startServerBackground(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if err := waitForServer(); err != nil {
		return err
	}

	r, err := checkReadiness()
	if err != nil {
		return fmt.Errorf("server started but readiness is unknown: %w", err)
	}
	if missing := r.missing(); len(missing) > 0 {
		return fmt.Errorf("server started, but these tools are missing: %s", strings.Join(missing, ", "))
	}
	fmt.Fprintln(os.Stderr, "Server started successfully")
	return nil
}

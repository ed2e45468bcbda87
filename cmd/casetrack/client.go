package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"casetrack/internal/api"
	"casetrack/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond

	loginEmailEnvKey    = "CASETRACK_LOGIN_EMAIL"
	loginPasswordEnvKey = "CASETRACK_LOGIN_PASSWORD"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	return runWithClient(cfg, true, fn)
}

// withAnonClient is for endpoints that take no session.
func withAnonClient(cfg *config.Config, fn func(*api.Client) error) error {
	return runWithClient(cfg, false, fn)
}

func runWithClient(cfg *config.Config, needsSession bool, fn func(*api.Client) error) error {
	cleanup, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	client := api.NewClient(cfg.APIURL)
	if needsSession {
		if err := ensureSession(client); err != nil {
			return err
		}
	}
	return fn(client)
}

// ensureSession logs in with credentials from the environment when no
// session token is set.
func ensureSession(client *api.Client) error {
	if client.HasSessionToken() {
		return nil
	}
	email := strings.TrimSpace(os.Getenv(loginEmailEnvKey))
	password := os.Getenv(loginPasswordEnvKey)
	if email == "" || password == "" {
		return fmt.Errorf("no session: set CASETRACK_SESSION_TOKEN or %s and %s", loginEmailEnvKey, loginPasswordEnvKey)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Login(ctx, email, password)
}

func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx); err == nil {
		return nil, nil
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}

	return cleanup, nil
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"CASETRACK_DB="+cfg.DBPath,
		"CASETRACK_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			// Port in use but not our API; surface the error.
			return err
		}
		time.Sleep(serverPollInterval)
	}
	return errors.New("server did not start in time")
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

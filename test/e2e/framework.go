//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittolpd/pkg/client"
	"github.com/marmos91/dittolpd/pkg/config"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// TestContext provides a complete testing environment with:
// - A running dittolpd (LPD listener and admin API)
// - An LPD client pointed at it
// - Cleanup mechanisms
type TestContext struct {
	T       testing.TB
	Config  *TestConfig
	Runtime *config.Runtime
	Client  *client.Client

	LPDAddr string
	APIURL  string

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan error
	tempDirs []string
}

// NewTestContext builds a daemon from the configuration, starts it and
// waits until both listeners accept connections.
func NewTestContext(t testing.TB, cfg *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	tc.startServer()

	var err error
	tc.Client, err = client.New(client.Config{
		Address: tc.LPDAddr,
		Host:    "e2ehost",
		User:    "e2e",
		Timeout: 30 * time.Second,
	})
	if err != nil {
		tc.Cleanup()
		t.Fatalf("Failed to create LPD client: %v", err)
	}

	return tc
}

// startServer builds the runtime and serves it in the background
func (tc *TestContext) startServer() {
	tc.T.Helper()

	serverCfg, err := tc.Config.ServerConfig(tc)
	if err != nil {
		tc.T.Fatalf("Failed to build server config: %v", err)
	}

	tc.Runtime, err = config.Build(tc.ctx, serverCfg)
	if err != nil {
		tc.T.Fatalf("Failed to build server: %v", err)
	}

	go func() {
		tc.done <- tc.Runtime.Server.Serve(tc.ctx)
	}()

	tc.waitForServer()
}

// waitForServer waits until every adapter has bound its ephemeral port
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case err := <-tc.done:
			tc.T.Fatalf("Server exited during startup: %v", err)
		case <-ticker.C:
			ready := true
			for _, a := range tc.Runtime.Server.Adapters() {
				port := a.Port()
				if port <= 0 {
					ready = false
					break
				}
				switch a.Protocol() {
				case "LPD":
					tc.LPDAddr = fmt.Sprintf("127.0.0.1:%d", port)
				case "API":
					tc.APIURL = fmt.Sprintf("http://127.0.0.1:%d", port)
				}
			}
			if ready {
				return
			}
		}
	}
}

// Cleanup stops the server and removes temporary files
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	if tc.cancel != nil {
		tc.cancel()
	}

	if tc.Runtime != nil {
		select {
		case err := <-tc.done:
			if err != nil && !errors.Is(err, context.Canceled) {
				tc.T.Errorf("Server stopped with error: %v", err)
			}
		case <-time.After(30 * time.Second):
			tc.T.Error("Timeout waiting for server to stop")
		}
	}

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// CreateTempDir creates a temporary directory and registers it for cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig returns the test configuration
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// Context returns a context bounded by the test timeout.
func (tc *TestContext) Context() context.Context {
	ctx, cancel := context.WithTimeout(tc.ctx, 30*time.Second)
	tc.T.Cleanup(cancel)
	return ctx
}

// SubmitText submits one job whose data files hold the given texts.
func (tc *TestContext) SubmitText(queue string, texts ...string) (*client.Receipt, error) {
	tc.T.Helper()

	job := &client.Job{JobName: "e2e"}
	for i, text := range texts {
		job.Files = append(job.Files, client.File{
			Name: fmt.Sprintf("file%d.txt", i+1),
			Data: strings.NewReader(text),
			Size: int64(len(text)),
		})
	}
	return tc.Client.Submit(tc.Context(), queue, job)
}

// Jobs returns the jobs of queue as the spool sees them.
func (tc *TestContext) Jobs(queue string) []*jobs.Job {
	tc.T.Helper()

	list, err := tc.Runtime.Spool.ListJobs(tc.Context(), queue)
	if err != nil {
		tc.T.Fatalf("Failed to list jobs of %s: %v", queue, err)
	}
	return list
}

// ReadJobFile returns the stored content of a job file.
func (tc *TestContext) ReadJobFile(jobID, name string) []byte {
	tc.T.Helper()

	rc, _, err := tc.Runtime.Spool.OpenFile(tc.Context(), jobID, name)
	if err != nil {
		tc.T.Fatalf("Failed to open %s of job %s: %v", name, jobID, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		tc.T.Fatalf("Failed to read %s of job %s: %v", name, jobID, err)
	}
	return data
}

// APIRequest performs a request against the admin API and decodes a JSON
// response into out when out is non-nil. Returns the status code.
func (tc *TestContext) APIRequest(method, path string, out any) int {
	tc.T.Helper()

	req, err := http.NewRequestWithContext(tc.Context(), method, tc.APIURL+path, nil)
	if err != nil {
		tc.T.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		tc.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Failed to read response body: %v", err)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			tc.T.Fatalf("Failed to decode %s %s response %q: %v", method, path, body, err)
		}
	}
	return resp.StatusCode
}

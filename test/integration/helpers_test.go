//go:build integration

// Package integration provides end-to-end tests that stage an export, save a
// run, and query it through the review API.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/graaaaa/reconcile/internal/api"
	"github.com/graaaaa/reconcile/internal/app"
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/ingest"
	"github.com/graaaaa/reconcile/internal/store"
	"github.com/graaaaa/reconcile/internal/summary"
)

// exportLines holds a true duplicate, a price change, an unexplained
// divergence, a singleton, and a record without an insert_id.
var exportLines = []string{
	`{"$insert_id":"order-1","event_type":"Purchase","client_upload_time":"2024-01-01 12:00:00.000000","event_properties":{"Property":"12 Main St"}}`,
	`{"$insert_id":"order-1","event_type":"Purchase","client_upload_time":"2024-01-01 12:00:00.000000","event_properties":{"Property":"12 Main St"}}`,
	`{"$insert_id":"order-2","event_type":"Purchase","client_upload_time":"2024-01-01 12:00:00.000000","event_properties":{"Property":"9 Elm St","Price per Share":"10.00"}}`,
	`{"$insert_id":"order-2","event_type":"Purchase","client_upload_time":"2024-01-01 12:01:00.000000","event_properties":{"Property":"9 Elm St","Price per Share":"12.50"}}`,
	`{"$insert_id":"order-3","event_type":"Purchase","client_upload_time":"2024-01-01 12:00:00.000000","event_properties":{"note":"a"}}`,
	`{"$insert_id":"order-3","event_type":"Purchase","client_upload_time":"2024-01-01 12:02:00.000000","event_properties":{"note":"b"}}`,
	`{"$insert_id":"order-4","event_type":"Refund","event_properties":{}}`,
	`{"event_type":"Purchase","event_properties":{}}`,
	`not json`,
}

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server *httptest.Server
	Store  *store.Store

	cleanup func()
}

// NewTestApp creates a test application backed by a real store.
// Call Close when done to release resources.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	cfg := &testAppConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	tmpDir := t.TempDir()
	st, err := store.Open(filepath.Join(tmpDir, "test.sqlite"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	serverOpts := []api.ServerOption{
		api.WithRunsUsecase(&app.RunsService{Store: st}),
		api.WithAnalysesUsecase(&app.AnalysesService{Store: st}),
		api.WithStatsUsecase(app.NewStatsService(st)),
	}
	if cfg.authEnabled {
		afl := api.NewAuthFailureLimiter(api.DefaultAuthFailureLimiterConfig())
		serverOpts = append(serverOpts, api.WithBasicAuth(cfg.username, cfg.password, afl))
	}

	// addr is ignored for httptest
	server := api.NewServer("127.0.0.1:0", app.HealthService{Version: "test", DB: st}, serverOpts...)
	ts := httptest.NewServer(server.Handler())

	return &TestApp{
		Server: ts,
		Store:  st,
		cleanup: func() {
			ts.Close()
			st.Close()
		},
	}
}

// Close releases all resources.
func (a *TestApp) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// URL returns the base URL of the test server.
func (a *TestApp) URL() string {
	return a.Server.URL
}

// Ingest stages lines through the directory source, as the ingest command does.
func (a *TestApp) Ingest(t *testing.T, lines []string) ingest.Stats {
	t.Helper()

	dir := t.TempDir()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "export.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}

	ing := ingest.New(ingest.NewDirSource(dir), a.Store)
	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	return ing.Stats()
}

// Analyze analyzes everything staged and saves the run.
func (a *TestApp) Analyze(t *testing.T) store.Run {
	t.Helper()
	ctx := context.Background()

	records, err := a.Store.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("failed to load records: %v", err)
	}

	p := dedupe.GroupRecords(records)
	sum := summary.New(summary.DefaultExcludedFields)
	sum.SetPartition(p)

	started := time.Now()
	analyses, err := dedupe.NewAnalyzer(dedupe.WithObserver(sum.Observe)).Run(ctx, p.Duplicates)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	run := store.Run{
		Source:     "staging database",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Summary:    sum.Snapshot(),
	}
	if err := a.Store.SaveRun(ctx, &run, analyses); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	return run
}

// getJSON issues a GET and decodes a 200 response into v. It returns the
// status code.
func getJSON(t *testing.T, req *http.Request, v any) int {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
	}
	return resp.StatusCode
}

func newGet(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

// testAppConfig holds configuration for test app.
type testAppConfig struct {
	authEnabled bool
	username    string
	password    string
}

// TestAppOption configures a test app.
type TestAppOption func(*testAppConfig)

// WithAuth enables authentication for the test app.
func WithAuth(username, password string) TestAppOption {
	return func(cfg *testAppConfig) {
		cfg.authEnabled = true
		cfg.username = username
		cfg.password = password
	}
}

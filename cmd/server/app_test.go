package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/api"
	"github.com/phrazzld/scaffold-api/internal/api/shared"
	"github.com/phrazzld/scaffold-api/internal/archive"
	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/generation"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/task"
	"github.com/phrazzld/scaffold-api/internal/task/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pollTimeout  = 5 * time.Second
	pollInterval = 10 * time.Millisecond
)

// fakeScaffolder writes a small project named after the configuration.
// Project names select failure modes.
type fakeScaffolder struct {
	release chan struct{}
}

func newFakeScaffolder() *fakeScaffolder {
	return &fakeScaffolder{release: make(chan struct{})}
}

func (f *fakeScaffolder) Generate(ctx context.Context, dir string, cfg domain.ProjectConfig) (string, error) {
	switch cfg.ProjectName {
	case "broken":
		return "", &generation.ExitError{Code: 3, Diagnostics: "template rendering failed"}
	case "slow":
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	root := filepath.Join(dir, cfg.ProjectName)
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		return "", err
	}
	readme := fmt.Sprintf("# %s\n\nby %s\n", cfg.ProjectName, cfg.AuthorName)
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte(readme), 0o644); err != nil {
		return "", err
	}
	return "", os.WriteFile(filepath.Join(root, "src", cfg.Framework+".py"), []byte("print('hi')\n"), 0o644)
}

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	return &config.Config{
		Server:  config.ServerConfig{Port: 0, LogLevel: "debug", AllowedOrigins: []string{"*"}},
		Storage: config.StorageConfig{DataDir: dataDir},
		Store: config.StoreConfig{
			Driver:       driver,
			RegistryPath: filepath.Join(dataDir, "tasks.json"),
			SQLitePath:   filepath.Join(dataDir, "tasks.db"),
		},
		Generator: config.GeneratorConfig{Command: "unused"},
		Task:      config.TaskConfig{WorkerCount: 2, QueueSize: 10},
	}
}

type testServer struct {
	app *application
	gen *fakeScaffolder
	url string
}

func startTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	gen := newFakeScaffolder()
	app, err := newApplicationWith(context.Background(), cfg, logger.DiscardLogger(), dependencies{generator: gen})
	require.NoError(t, err)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(func() {
		srv.Close()
		app.cleanup()
	})
	return &testServer{app: app, gen: gen, url: srv.URL}
}

func (s *testServer) submit(t *testing.T, cfg domain.ProjectConfig) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(cfg)
	require.NoError(t, err)
	return s.do(t, http.MethodPost, "/api/generate", body)
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.url+path, bytes.NewReader(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (s *testServer) status(t *testing.T, id uuid.UUID) task.Record {
	t.Helper()
	resp, body := s.do(t, http.MethodGet, "/api/status/"+id.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var r task.Record
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func (s *testServer) waitFor(t *testing.T, id uuid.UUID, want task.TaskStatus) task.Record {
	t.Helper()
	var last task.Record
	require.Eventually(t, func() bool {
		last = s.status(t, id)
		return last.Status == want
	}, pollTimeout, pollInterval, "task %s never reached %s", id, want)
	return last
}

func accepted(t *testing.T, s *testServer, cfg domain.ProjectConfig) uuid.UUID {
	t.Helper()
	resp, body := s.submit(t, cfg)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var gr api.GenerateResponse
	require.NoError(t, json.Unmarshal(body, &gr))
	assert.Equal(t, task.TaskStatusPending, gr.Status)
	return gr.TaskID
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *testServer)) {
	for _, driver := range []string{config.StoreDriverFile, config.StoreDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			fn(t, startTestServer(t, testConfig(t, driver)))
		})
	}
}

func TestSubmitPollDownload(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		id := accepted(t, s, storetest.SampleConfig("alpha"))

		done := s.waitFor(t, id, task.TaskStatusCompleted)
		assert.Equal(t, task.DownloadURLFor(id), done.DownloadURL)
		assert.Equal(t, task.MessageCompleted, done.Message)

		resp, body := s.do(t, http.MethodGet, done.DownloadURL, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="`+id.String()+`.zip"`, resp.Header.Get("Content-Disposition"))

		onDisk, err := os.ReadFile(s.app.workspaces.ArchivePath(id))
		require.NoError(t, err)
		assert.Equal(t, onDisk, body, "download is byte-identical to the archive")

		entries, err := archive.Entries(s.app.workspaces.ArchivePath(id))
		require.NoError(t, err)
		assert.Contains(t, entries, "alpha/README.md")
		assert.Contains(t, entries, "alpha/src/pytorch.py")
	})
}

func TestSubmit_MissingFieldsCreatesNothing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		cfg := storetest.SampleConfig("x")
		cfg.ProjectName = ""
		cfg.AuthorName = ""

		resp, body := s.submit(t, cfg)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.Equal(t, []string{"project_name", "author_name"}, errResp.MissingFields)

		pending, err := s.app.taskStore.GetTasksByStatus(context.Background(), task.TaskStatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)

		resp, _ = s.do(t, http.MethodGet, "/api/status/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGeneratorFailureCleansUp(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		id := accepted(t, s, storetest.SampleConfig("broken"))

		failed := s.waitFor(t, id, task.TaskStatusFailed)
		assert.True(t, strings.HasPrefix(failed.Message, "Generation failed: "), failed.Message)
		assert.Contains(t, failed.Message, "template rendering failed")
		assert.Empty(t, failed.DownloadURL)

		require.Eventually(t, func() bool {
			ws, arc := s.app.workspaces.Exists(id)
			return !ws && !arc
		}, pollTimeout, pollInterval, "workspace and archive removed")

		resp, _ := s.do(t, http.MethodGet, task.DownloadURLFor(id), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestDownloadBeforeCompletion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		id := accepted(t, s, storetest.SampleConfig("slow"))
		s.waitFor(t, id, task.TaskStatusProcessing)

		resp, body := s.do(t, http.MethodGet, task.DownloadURLFor(id), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.NotEqual(t, "application/zip", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(body), "processing")

		close(s.gen.release)
		s.waitFor(t, id, task.TaskStatusCompleted)
	})
}

func TestDownloadUnknownTask(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		for _, path := range []string{"/api/download/" + uuid.NewString(), "/api/download/not-a-uuid"} {
			resp, _ := s.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		}
	})
}

func TestConcurrentSubmissionsAreIsolated(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *testServer) {
		first := accepted(t, s, storetest.SampleConfig("first"))
		second := accepted(t, s, storetest.SampleConfig("second"))
		require.NotEqual(t, first, second)

		for id, name := range map[uuid.UUID]string{first: "first", second: "second"} {
			s.waitFor(t, id, task.TaskStatusCompleted)

			entries, err := archive.Entries(s.app.workspaces.ArchivePath(id))
			require.NoError(t, err)
			for _, e := range entries {
				assert.True(t, strings.HasPrefix(e, name+"/"), "entry %s in archive of %s", e, name)
			}
		}
	})
}

func TestDownloadArchiveMissingFromDisk(t *testing.T) {
	s := startTestServer(t, testConfig(t, config.StoreDriverFile))
	id := accepted(t, s, storetest.SampleConfig("vanishing"))
	s.waitFor(t, id, task.TaskStatusCompleted)

	require.NoError(t, os.Remove(s.app.workspaces.ArchivePath(id)))

	resp, _ := s.do(t, http.MethodGet, task.DownloadURLFor(id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoveryOnStart(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverSQLite)
	ctx := context.Background()

	// Leave one task pending and one interrupted mid-generation.
	seed, err := openTaskStore(ctx, cfg, logger.DiscardLogger())
	require.NoError(t, err)
	pending := task.NewRecord(storetest.SampleConfig("queued"))
	interrupted := task.NewRecord(storetest.SampleConfig("interrupted"))
	require.NoError(t, seed.SaveTask(ctx, pending))
	require.NoError(t, seed.SaveTask(ctx, interrupted))
	require.NoError(t, seed.UpdateTaskStatus(ctx, interrupted.ID, task.TaskStatusProcessing, task.MessageProcessing, ""))
	require.NoError(t, seed.Close())

	leftover := filepath.Join(cfg.Storage.DataDir, "workspaces", interrupted.ID.String())
	require.NoError(t, os.MkdirAll(leftover, 0o755))
	archives := filepath.Join(cfg.Storage.DataDir, "archives")
	require.NoError(t, os.MkdirAll(archives, 0o755))
	partialDest := filepath.Join(archives, interrupted.ID.String()+".zip")
	partial, err := os.CreateTemp(archives, archive.PartialPattern(partialDest))
	require.NoError(t, err)
	_, err = partial.WriteString("PK\x03\x04 truncated")
	require.NoError(t, err)
	require.NoError(t, partial.Close())

	s := startTestServer(t, cfg)

	s.waitFor(t, pending.ID, task.TaskStatusCompleted)
	failed := s.waitFor(t, interrupted.ID, task.TaskStatusFailed)
	assert.Equal(t, task.MessageRestarted, failed.Message)
	// The record turns failed just before its artifacts are removed.
	require.Eventually(t, func() bool {
		_, dirErr := os.Stat(leftover)
		_, partialErr := os.Stat(partial.Name())
		return os.IsNotExist(dirErr) && os.IsNotExist(partialErr)
	}, pollTimeout, pollInterval, "workspace and partial archive of the interrupted run are removed")
}

func TestOptionsHealthAndCORS(t *testing.T) {
	s := startTestServer(t, testConfig(t, config.StoreDriverFile))

	resp, body := s.do(t, http.MethodGet, "/api/options", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "framework")

	resp, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, s.url+"/api/generate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://form.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300, "preflight succeeds")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	app := &application{config: testConfig(t, config.StoreDriverFile), logger: logger.DiscardLogger()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.serve(ctx, ln, http.HandlerFunc(api.Health))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, pollTimeout, pollInterval)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(pollTimeout):
		t.Fatal("server did not shut down")
	}
}

func TestNewApplication_RejectsBadGeneratorConfig(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverFile)
	cfg.Generator.Command = ""

	_, err := newApplication(context.Background(), cfg, logger.DiscardLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestOpenTaskStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "mongo")
	_, err := openTaskStore(context.Background(), cfg, logger.DiscardLogger())
	assert.Error(t, err)
}

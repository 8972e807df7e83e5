package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/app"
	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/infrastructure"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// countingRunner counts spawns and answers yt-dlp jobs with a fixed document and artifact
type countingRunner struct {
	mu     sync.Mutex
	spawns int
	fail   bool
}

func (r *countingRunner) Run(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	r.mu.Lock()
	r.spawns++
	r.mu.Unlock()

	if r.fail {
		return &domain.JobResult{ExitCode: 1, Stderr: "WARNING: retrying\nERROR: Video unavailable"}, nil
	}
	switch job.Output {
	case domain.OutputCapture:
		return &domain.JobResult{Stdout: []byte(`{"title":"Clip","formats":[]}`)}, nil
	case domain.OutputFile:
		return &domain.JobResult{}, os.WriteFile(job.OutputPath, []byte(strings.Repeat("v", 2000)), 0644)
	}
	return nil, errors.New("unexpected job")
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spawns
}

type handlerFixture struct {
	router  *gin.Engine
	runner  *countingRunner
	history *infrastructure.SQLiteHistoryRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	config := domain.DefaultConfig()
	config.Download.TempDir = t.TempDir()

	history, err := infrastructure.NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	runner := &countingRunner{}
	temps := infrastructure.TempFactory{Dir: config.Download.TempDir}
	manager := app.NewMediaManager(
		app.NewProviderSet(infrastructure.NewYTDLPProvider(&config.Tools), infrastructure.NewSpotDLProvider(&config.Tools)),
		infrastructure.NewFFmpegTranscoder(&config.Tools),
		runner,
		func() domain.TempTracker { return temps.New() },
		&config.Download,
		nil,
	)

	h := NewMediaHandler(manager, history, config.Download.FileDelivery, zap.NewNop())
	r := gin.New()
	r.POST("/api/info", h.Info)
	r.POST("/api/download", h.Download)
	return &handlerFixture{router: r, runner: runner, history: history}
}

func (f *handlerFixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestMediaHandler_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"info not a url", "/api/info", `{"url":"not-a-url"}`, "Invalid URL."},
		{"info missing url", "/api/info", `{}`, "Invalid URL."},
		{"download not a url", "/api/download", `{"url":"not-a-url","quality":"mp3"}`, "Invalid URL."},
		{"download ftp", "/api/download", `{"url":"ftp://example.com/a","quality":"mp3"}`, "Invalid URL."},
		{"download no quality", "/api/download", `{"url":"https://youtu.be/abc"}`, "No format specified."},
		{"download blank quality", "/api/download", `{"url":"https://youtu.be/abc","quality":"  "}`, "No format specified."},
		{"malformed body", "/api/download", `{"url":`, "Invalid request body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			rec := f.post(tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, rec.Body.String())
			assert.Zero(t, f.runner.count(), "nothing is spawned for rejected input")

			records, err := f.history.FindRecent(10, nil)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, domain.StatusRejected, records[0].Status)
		})
	}
}

func TestMediaHandler_Info(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/info", `{"url":"https://www.youtube.com/watch?v=abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"Clip","uploader":"Unknown","duration":"","views":"","thumbnail":"","formats":[]}`, rec.Body.String())
	assert.Equal(t, 1, f.runner.count())
}

func TestMediaHandler_InfoFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.runner.fail = true

	rec := f.post("/api/info", `{"url":"https://www.youtube.com/watch?v=abc"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to get media info. ERROR: Video unavailable"}`, rec.Body.String())

	stats, err := f.history.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestMediaHandler_Download(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/download", `{"url":"https://www.youtube.com/watch?v=abc","quality":"best"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Clip.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 2000, rec.Body.Len())

	records, err := f.history.FindRecent(1, map[string]interface{}{"endpoint": domain.EndpointDownload})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusSucceeded, records[0].Status)
	assert.Equal(t, int64(2000), records[0].BytesSent)
	assert.Equal(t, domain.ProviderVideoPlatform, records[0].Provider)
	assert.Equal(t, "best", records[0].Quality)
}

func TestMediaHandler_DownloadFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.runner.fail = true

	rec := f.post("/api/download", `{"url":"https://www.youtube.com/watch?v=abc","quality":"mp3"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `attachment; filename="error.log"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "ERROR: Video unavailable")
}

type interruptingService struct{}

func (interruptingService) Info(ctx context.Context, url string) (*domain.MediaInfo, error) {
	return nil, errors.New("unused")
}

func (interruptingService) Download(ctx context.Context, req domain.DownloadRequest, resp *app.Responder) error {
	w := resp.Stream("Clip", "mp4")
	_, _ = w.Write([]byte("partial"))
	return errors.Join(domain.ErrStreamInterrupted, domain.NewError(domain.KindExtractionFailed, "boom"))
}

func TestMediaHandler_AbortsInterruptedStream(t *testing.T) {
	h := NewMediaHandler(interruptingService{}, nil, domain.FileDeliveryStreamed, zap.NewNop())
	r := gin.New()
	r.POST("/api/download", h.Download)

	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"https://youtu.be/abc","quality":"18"}`))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), req)
	})
}

func TestInfoErrorMessage(t *testing.T) {
	assert.Equal(t, "Failed.", infoErrorMessage(&domain.Error{Kind: domain.KindExtractionFailed, Message: "Failed."}))
	assert.Equal(t, "Failed. last line", infoErrorMessage(&domain.Error{
		Kind: domain.KindExtractionFailed, Message: "Failed.", Stderr: "first\nlast line\n",
	}))
	assert.Equal(t, "yt-dlp is not installed or not in PATH.", infoErrorMessage(&domain.Error{
		Kind: domain.KindToolNotFound, Message: "yt-dlp is not installed or not in PATH.", Stderr: "exec: not found",
	}))
	long := infoErrorMessage(&domain.Error{Kind: domain.KindExtractionFailed, Message: "F.", Stderr: strings.Repeat("x", 1000)})
	assert.Len(t, long, len("F. ")+maxInfoDetail)
}

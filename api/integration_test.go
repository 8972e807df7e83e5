package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupxyz/media-relay/internal/app"
	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/infrastructure"
)

// Stand-ins for the external tools. They understand just enough of the real command lines.
const (
	fakeYTDLP = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --version) echo "2024.03.10"; exit 0 ;;
    --dump-single-json)
      echo '{"title":"Integration Clip","uploader":"tester","formats":[{"format_id":"18","ext":"mp4","format_note":"360p"}]}'
      exit 0 ;;
    -o) out="$2"; shift ;;
    *broken*) echo "ERROR: [generic] Unable to download webpage" >&2; exit 1 ;;
  esac
  shift
done
if [ "$out" = "-" ]; then
  dd if=/dev/zero bs=1024 count=4 2>/dev/null
else
  dd if=/dev/zero of="$out" bs=1024 count=4 2>/dev/null
fi
`
	fakeFFmpeg = `#!/bin/sh
in=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -version) echo "ffmpeg version 6.1"; exit 0 ;;
    -i) in="$2"; shift ;;
    *) out="$1" ;;
  esac
  shift
done
echo "size=4kB time=00:00:01.00" >&2
cat "$in" "$in" > "$out"
`
	fakeSpotDL = `#!/bin/sh
echo "4.2.5"
`
)

type integrationServer struct {
	*httptest.Server
	tempDir string
}

func writeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newIntegrationServer(t *testing.T, configure func(*domain.Config)) *integrationServer {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	bin := t.TempDir()
	config := domain.DefaultConfig()
	config.Server.TLS.Enabled = false
	config.RateLimit.Enabled = false
	config.Download.TempDir = t.TempDir()
	config.Logging.LogsDir = t.TempDir()
	config.Tools.YTDLPBinary = writeTool(t, bin, "yt-dlp", fakeYTDLP)
	config.Tools.FFmpegBinary = writeTool(t, bin, "ffmpeg", fakeFFmpeg)
	config.Tools.SpotDLBinary = writeTool(t, bin, "spotdl", fakeSpotDL)
	if configure != nil {
		configure(config)
	}

	history, err := infrastructure.NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	runner := infrastructure.NewProcessRunner(nil, &config.Download)
	temps := infrastructure.TempFactory{Dir: config.Download.TempDir}
	manager := app.NewMediaManager(
		app.NewProviderSet(infrastructure.NewYTDLPProvider(&config.Tools), infrastructure.NewSpotDLProvider(&config.Tools)),
		infrastructure.NewFFmpegTranscoder(&config.Tools),
		runner,
		func() domain.TempTracker { return temps.New() },
		&config.Download,
		nil,
	)

	router := SetupRouter(RouterDeps{
		Config:  config,
		Media:   manager,
		Tools:   app.NewToolChecker(runner, &config.Tools),
		History: history,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &integrationServer{Server: server, tempDir: config.Download.TempDir}
}

func (s *integrationServer) post(t *testing.T, path string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (s *integrationServer) assertNoTempFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntegration_Info(t *testing.T) {
	s := newIntegrationServer(t, nil)

	resp, body := s.post(t, "/api/info", domain.InfoRequest{URL: "https://www.youtube.com/watch?v=abc"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var info domain.MediaInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "Integration Clip", info.Title)
	assert.Equal(t, "tester", info.Uploader)
	require.Len(t, info.Formats, 1)
	assert.Equal(t, "360p", info.Formats[0].Quality)
}

func TestIntegration_DownloadMP3(t *testing.T) {
	s := newIntegrationServer(t, nil)

	resp, body := s.post(t, "/api/download", domain.DownloadRequest{URL: "https://www.youtube.com/watch?v=abc", Quality: "mp3"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Integration_Clip.mp3"`, resp.Header.Get("Content-Disposition"))
	assert.Len(t, body, 8192)
	s.assertNoTempFiles(t)
}

func TestIntegration_DirectStream(t *testing.T) {
	s := newIntegrationServer(t, func(c *domain.Config) { c.Download.DirectStream = true })

	resp, body := s.post(t, "/api/download", domain.DownloadRequest{URL: "https://www.youtube.com/watch?v=abc", Quality: "18"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Len(t, body, 4096)
}

func TestIntegration_ExtractorFailure(t *testing.T) {
	s := newIntegrationServer(t, nil)

	resp, body := s.post(t, "/api/download", domain.DownloadRequest{URL: "https://www.youtube.com/watch?v=broken", Quality: "720p"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, `attachment; filename="error.log"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, string(body), "ERROR: [generic] Unable to download webpage")
	s.assertNoTempFiles(t)
}

func TestIntegration_MissingTool(t *testing.T) {
	s := newIntegrationServer(t, func(c *domain.Config) {
		c.Tools.SpotDLBinary = filepath.Join(t.TempDir(), "no-such-spotdl")
	})

	resp, body := s.post(t, "/api/download", domain.DownloadRequest{URL: "https://open.spotify.com/track/abc", Quality: "mp3"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "spotDL is not installed or not in PATH. Please install spotDL (pip install spotdl).")
	s.assertNoTempFiles(t)

	ready, err := http.Get(s.URL + "/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)
}

func TestIntegration_HistoryRecordsOutcomes(t *testing.T) {
	s := newIntegrationServer(t, nil)

	s.post(t, "/api/info", domain.InfoRequest{URL: "not-a-url"})
	s.post(t, "/api/download", domain.DownloadRequest{URL: "https://www.youtube.com/watch?v=abc", Quality: "720p"})

	resp, err := http.Get(s.URL + "/api/history/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats domain.HistoryStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(4096), stats.BytesSent)
}

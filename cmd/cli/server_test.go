package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerEnv(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    []string
		wantErr bool
	}{
		{"default https", "https://localhost:3000", []string{"MEDIARELAY_SERVER_PORT=3000", "MEDIARELAY_SERVER_TLS_ENABLED=true"}, false},
		{"plain http without port", "http://127.0.0.1", []string{"MEDIARELAY_SERVER_PORT=80", "MEDIARELAY_SERVER_TLS_ENABLED=false"}, false},
		{"ipv6 loopback", "https://[::1]", []string{"MEDIARELAY_SERVER_PORT=443", "MEDIARELAY_SERVER_TLS_ENABLED=true"}, false},
		{"remote host", "https://relay.example.com:3000", nil, true},
		{"not a url", "localhost:3000", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := serverEnv(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env)
		})
	}
}

func TestServerArgs(t *testing.T) {
	assert.Nil(t, serverArgs(""))
	assert.Equal(t, []string{"-config", "/etc/media-relay/config.yaml"}, serverArgs("/etc/media-relay/config.yaml"))
}

func withServerURL(t *testing.T, url string) {
	t.Helper()
	old := serverURL
	serverURL = url
	t.Cleanup(func() { serverURL = old })
}

func TestCheckReadiness_ReportsMissingTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ready", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready","reason":"external tools missing","tools":[
			{"tool":"yt-dlp","binary":"yt-dlp","available":true,"version":"2024.03.10"},
			{"tool":"spotDL","binary":"spotdl","available":false,"error":"spotDL is not installed or not in PATH."},
			{"tool":"ffmpeg","binary":"ffmpeg","available":false}]}`))
	}))
	defer srv.Close()
	withServerURL(t, srv.URL)

	r, err := checkReadiness()
	require.NoError(t, err)
	assert.Equal(t, "not ready", r.Status)
	assert.Equal(t, []string{"spotDL (spotDL is not installed or not in PATH.)", "ffmpeg"}, r.missing())
}

func TestCheckReadiness_Ready(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ready","tools":[{"tool":"ffmpeg","binary":"ffmpeg","available":true}]}`))
	}))
	defer srv.Close()
	withServerURL(t, srv.URL)

	r, err := checkReadiness()
	require.NoError(t, err)
	assert.Empty(t, r.missing())
}

func TestCheckReadiness_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	withServerURL(t, srv.URL)

	_, err := checkReadiness()
	assert.Error(t, err)
}

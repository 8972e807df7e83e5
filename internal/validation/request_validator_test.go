package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupxyz/media-relay/internal/domain"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		valid bool
	}{
		{"https", "https://www.youtube.com/watch?v=abc", true},
		{"http", "http://example.com/video", true},
		{"spotify", "https://open.spotify.com/intl-de/track/abc?si=xyz", true},
		{"not a url", "not-a-url", false},
		{"empty", "", false},
		{"ftp scheme", "ftp://example.com/file", false},
		{"scheme not at start", " https://example.com", false},
		{"uppercase scheme", "HTTPS://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
			assert.Equal(t, MsgInvalidURL, domain.AsError(err).Message)
		})
	}
}

func TestValidateDownloadRequest(t *testing.T) {
	t.Run("valid request trims quality", func(t *testing.T) {
		req := &domain.DownloadRequest{URL: "https://example.com/v", Quality: "  mp3 "}
		require.NoError(t, ValidateDownloadRequest(req))
		assert.Equal(t, "mp3", req.Quality)
	})

	t.Run("blank quality", func(t *testing.T) {
		req := &domain.DownloadRequest{URL: "https://example.com/v", Quality: "   "}
		err := ValidateDownloadRequest(req)
		require.Error(t, err)
		assert.Equal(t, MsgNoFormat, domain.AsError(err).Message)
	})

	t.Run("bad url reported before quality", func(t *testing.T) {
		err := ValidateDownloadRequest(&domain.DownloadRequest{URL: "not-a-url"})
		require.Error(t, err)
		assert.Equal(t, MsgInvalidURL, domain.AsError(err).Message)
	})

	t.Run("nil request", func(t *testing.T) {
		err := ValidateDownloadRequest(nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestValidateInfoRequest(t *testing.T) {
	assert.NoError(t, ValidateInfoRequest(&domain.InfoRequest{URL: "https://example.com"}))
	assert.Error(t, ValidateInfoRequest(&domain.InfoRequest{URL: "example.com"}))
	assert.Error(t, ValidateInfoRequest(nil))
}

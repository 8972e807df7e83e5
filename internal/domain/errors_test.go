package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NewError(KindExtractionFailed, "yt-dlp failed")
	wrapped := fmt.Errorf("download: %w", err)

	assert.True(t, errors.Is(wrapped, ErrExtractionFailed))
	assert.False(t, errors.Is(wrapped, ErrTranscodeFailed))
	assert.False(t, errors.Is(wrapped, NewError(KindExtractionFailed, "other message")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := WrapError(KindToolNotFound, "yt-dlp is not installed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "tool_not_found")
	assert.Contains(t, err.Error(), "exec: not found")
}

func TestAsError_Unclassified(t *testing.T) {
	e := AsError(errors.New("boom"))

	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Nil(t, AsError(nil))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestErrorKind_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidInput.HTTPStatus())
	for _, k := range []ErrorKind{KindToolNotFound, KindExtractionFailed, KindTranscodeFailed, KindMetadataParseFailed, KindInternal} {
		assert.Equal(t, http.StatusInternalServerError, k.HTTPStatus(), k)
	}
}

func TestRequestRecord_Finish(t *testing.T) {
	ok := NewRequestRecord(EndpointInfo, "https://example.com/v")
	ok.Finish(nil)
	assert.NotEmpty(t, ok.ID)
	assert.Equal(t, StatusSucceeded, ok.Status)

	rejected := NewRequestRecord(EndpointDownload, "not-a-url")
	rejected.Finish(NewError(KindInvalidInput, "Invalid URL."))
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, KindInvalidInput, rejected.ErrorKind)
	assert.Equal(t, "Invalid URL.", rejected.ErrorMessage)

	failed := NewRequestRecord(EndpointDownload, "https://example.com/v")
	failed.Finish(NewError(KindTranscodeFailed, "ffmpeg failed"))
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, KindTranscodeFailed, failed.ErrorKind)
}

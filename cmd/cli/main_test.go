package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "Clip.mp4", attachmentName(`attachment; filename="Clip.mp4"`))
	assert.Equal(t, "passwd", attachmentName(`attachment; filename="../../etc/passwd"`))
	assert.Equal(t, "download", attachmentName(""))
	assert.Equal(t, "download", attachmentName("attachment"))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Invalid URL.", errorText([]byte(`{"error":"Invalid URL."}`)))
	assert.Equal(t, "ffmpeg failed to convert file!\nstderr\n", errorText([]byte("ffmpeg failed to convert file!\nstderr\n")))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "3.0 MiB", humanBytes(3<<20))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

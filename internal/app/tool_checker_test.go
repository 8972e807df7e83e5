package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupxyz/media-relay/internal/domain"
)

func TestToolChecker_Check(t *testing.T) {
	runner := newFakeRunner().
		on("yt-dlp", func(job *domain.Job) (*domain.JobResult, error) {
			return &domain.JobResult{Stdout: []byte("2024.03.10\n")}, nil
		}).
		on("spotDL", func(job *domain.Job) (*domain.JobResult, error) {
			return nil, domain.NewError(domain.KindToolNotFound, "spotDL is not installed or not in PATH.")
		}).
		on("ffmpeg", func(job *domain.Job) (*domain.JobResult, error) {
			return &domain.JobResult{Stdout: []byte("ffmpeg version 6.1\nbuilt with gcc\n")}, nil
		})
	checker := NewToolChecker(runner, &domain.DefaultConfig().Tools)

	ready, statuses := checker.Ready(context.Background())
	assert.False(t, ready)
	require.Len(t, statuses, 3)

	assert.Equal(t, ToolStatus{Tool: "yt-dlp", Binary: "yt-dlp", Available: true, Version: "2024.03.10"}, statuses[0])
	assert.False(t, statuses[1].Available)
	assert.Equal(t, "spotDL is not installed or not in PATH.", statuses[1].Error)
	assert.Equal(t, "ffmpeg version 6.1", statuses[2].Version)
}

func TestToolChecker_Cache(t *testing.T) {
	runner := newFakeRunner().
		on("yt-dlp", func(job *domain.Job) (*domain.JobResult, error) { return &domain.JobResult{}, nil }).
		on("spotDL", func(job *domain.Job) (*domain.JobResult, error) { return &domain.JobResult{}, nil }).
		on("ffmpeg", func(job *domain.Job) (*domain.JobResult, error) { return &domain.JobResult{ExitCode: 1}, nil })
	checker := NewToolChecker(runner, &domain.DefaultConfig().Tools)
	now := time.Now()
	checker.now = func() time.Time { return now }

	checker.Check(context.Background())
	statuses := checker.Check(context.Background())
	assert.Len(t, runner.tools(), 3, "second check is served from cache")
	assert.Equal(t, "version check failed", statuses[2].Error)

	now = now.Add(2 * time.Minute)
	ready, _ := checker.Ready(context.Background())
	assert.False(t, ready)
	assert.Len(t, runner.tools(), 6)
}

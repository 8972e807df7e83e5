package app

import (
	"bytes"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groupxyz/media-relay/internal/domain"
)

const toolCheckTTL = time.Minute

// ToolStatus reports whether an external tool can be run
type ToolStatus struct {
	Tool      string `json:"tool"`
	Binary    string `json:"binary"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type toolProbe struct {
	tool   string
	binary string
	args   []string
}

// ToolChecker runs each tool's version command and caches the answer for a minute
type ToolChecker struct {
	runner domain.JobRunner
	probes []toolProbe
	now    func() time.Time

	mu      sync.Mutex
	checked time.Time
	cached  []ToolStatus
}

// NewToolChecker probes the binaries named in config
func NewToolChecker(runner domain.JobRunner, config *domain.ToolsConfig) *ToolChecker {
	return &ToolChecker{
		runner: runner,
		probes: []toolProbe{
			{tool: "yt-dlp", binary: config.YTDLPBinary, args: []string{"--version"}},
			{tool: "spotDL", binary: config.SpotDLBinary, args: []string{"--version"}},
			{tool: "ffmpeg", binary: config.FFmpegBinary, args: []string{"-version"}},
		},
		now: time.Now,
	}
}

// Check returns the status of every tool, probing them in parallel when the cache is stale
func (c *ToolChecker) Check(ctx context.Context) []ToolStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.checked) < toolCheckTTL {
		return c.cached
	}

	statuses := make([]ToolStatus, len(c.probes))
	g, ctx := errgroup.WithContext(ctx)
	for i, probe := range c.probes {
		i, probe := i, probe
		g.Go(func() error {
			statuses[i] = c.probe(ctx, probe)
			return nil
		})
	}
	_ = g.Wait()

	c.cached, c.checked = statuses, c.now()
	return statuses
}

// Ready reports whether every tool is available
func (c *ToolChecker) Ready(ctx context.Context) (bool, []ToolStatus) {
	statuses := c.Check(ctx)
	for _, s := range statuses {
		if !s.Available {
			return false, statuses
		}
	}
	return true, statuses
}

func (c *ToolChecker) probe(ctx context.Context, p toolProbe) ToolStatus {
	status := ToolStatus{Tool: p.tool, Binary: p.binary}
	res, err := c.runner.Run(ctx, &domain.Job{
		Tool:   p.tool,
		Binary: p.binary,
		Args:   p.args,
		Output: domain.OutputCapture,
	})
	switch {
	case err != nil:
		status.Error = domain.AsError(err).Message
		if status.Error == "" {
			status.Error = err.Error()
		}
	case !res.Succeeded():
		status.Error = "version check failed"
	default:
		status.Available = true
		line, _, _ := bytes.Cut(bytes.TrimSpace(res.Stdout), []byte("\n"))
		status.Version = string(line)
	}
	return status
}

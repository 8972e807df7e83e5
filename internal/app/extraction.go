package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/domain"
)

const (
	msgInfoFailed     = "Failed to get media info."
	msgDownloadFailed = "Error during download."
	msgStreamFailed   = "Download stream failed."
)

// extractionStage runs provider jobs and checks what they produced
type extractionStage struct {
	runner   domain.JobRunner
	minBytes int64
	logger   *zap.Logger
}

// Metadata runs the provider's metadata job and parses its output
func (s *extractionStage) Metadata(ctx context.Context, p domain.Provider, url string) (*domain.MediaInfo, error) {
	res, err := s.runner.Run(ctx, p.MetadataJob(url))
	if err != nil {
		return nil, runFailure(res, err, domain.KindExtractionFailed, msgInfoFailed, p.Tool())
	}
	if !res.Succeeded() {
		return nil, &domain.Error{
			Kind:    domain.KindExtractionFailed,
			Message: msgInfoFailed,
			Tool:    p.Tool(),
			Stderr:  res.Stderr,
		}
	}

	info, err := p.ParseMetadata(res.Stdout)
	if err != nil {
		e := domain.AsError(err)
		if e.Kind == domain.KindInternal {
			e = domain.WrapError(domain.KindMetadataParseFailed, "Could not parse media info.", err)
		}
		e.Tool = p.Tool()
		e.Stderr = res.Stderr
		return nil, e
	}
	return info, nil
}

// Download runs a file-mode content job and returns the verified artifact path
func (s *extractionStage) Download(ctx context.Context, p domain.Provider, plan *domain.DownloadPlan) (string, error) {
	res, err := s.runner.Run(ctx, plan.Job)
	if err != nil {
		return "", runFailure(res, err, domain.KindExtractionFailed, msgDownloadFailed, p.Tool())
	}

	failure := func(extra string, partial []byte) error {
		return &domain.Error{
			Kind:    domain.KindExtractionFailed,
			Message: plan.FailureText,
			Tool:    p.Tool(),
			Stderr:  appendLine(res.Stderr, extra),
			Partial: partial,
		}
	}

	path, err := p.ResolveOutput(plan)
	if err != nil {
		return "", failure(err.Error(), nil)
	}

	size, partial, err := inspectArtifact(path, s.minBytes)
	switch {
	case !res.Succeeded():
		return "", failure(fmt.Sprintf("%s exited with code %d", p.Tool(), res.ExitCode), partial)
	case err != nil:
		return "", failure(err.Error(), nil)
	case partial != nil:
		return "", failure("", partial)
	}

	s.logger.Info("Extraction finished", zap.String("tool", p.Tool()), zap.String("path", path), zap.Int64("size", size))
	return path, nil
}

// Stream runs a stream-mode content job whose stdout goes to sink
func (s *extractionStage) Stream(ctx context.Context, p domain.Provider, plan *domain.DownloadPlan, sink io.Writer) (int64, error) {
	plan.Job.Stream = sink
	res, err := s.runner.Run(ctx, plan.Job)
	if err != nil {
		streamed := int64(0)
		if res != nil {
			streamed = res.Streamed
		}
		return streamed, runFailure(res, err, domain.KindExtractionFailed, msgStreamFailed, p.Tool())
	}
	if !res.Succeeded() || res.Streamed < s.minBytes {
		return res.Streamed, &domain.Error{
			Kind:    domain.KindExtractionFailed,
			Message: plan.FailureText,
			Tool:    p.Tool(),
			Stderr:  res.Stderr,
		}
	}
	return res.Streamed, nil
}

// inspectArtifact stats path. When the file exists but is smaller than minBytes its
// content is returned as partial output for the diagnostic.
func inspectArtifact(path string, minBytes int64) (size int64, partial []byte, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, nil, fmt.Errorf("output file missing: %w", err)
	}
	if fi.Size() >= minBytes {
		return fi.Size(), nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fi.Size(), nil, fmt.Errorf("failed to read undersized output: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return fi.Size(), data, nil
}

// runFailure turns a runner error into a classified error. Classified runner errors
// (tool not found) keep their kind; anything else becomes kind with the cause appended to stderr.
func runFailure(res *domain.JobResult, err error, kind domain.ErrorKind, message, tool string) *domain.Error {
	stderr := ""
	if res != nil {
		stderr = res.Stderr
	}

	var e *domain.Error
	if errors.As(err, &e) {
		if e.Tool == "" {
			e.Tool = tool
		}
		if e.Stderr == "" {
			e.Stderr = stderr
		}
		return e
	}
	return &domain.Error{Kind: kind, Message: message, Tool: tool, Stderr: appendLine(stderr, err.Error()), Err: err}
}

// appendLine adds line to text on a line of its own
func appendLine(text, line string) string {
	if line == "" {
		return text
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + line
}

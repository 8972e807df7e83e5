package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/domain"
)

const (
	msgTranscodeError  = "ffmpeg error converting file."
	msgTranscodeFailed = "ffmpeg failed to convert file!"
)

// transcodeStage converts an intermediate artifact into the requested audio format
type transcodeStage struct {
	transcoder domain.Transcoder
	runner     domain.JobRunner
	minBytes   int64
	logger     *zap.Logger
}

// Run converts input to ext and returns the tracked output path
func (s *transcodeStage) Run(ctx context.Context, input, ext string, temp domain.TempAllocator) (string, error) {
	output := temp.NewPath("_output")
	job, err := s.transcoder.TranscodeJob(input, output, ext)
	if err != nil {
		return "", domain.WrapError(domain.KindTranscodeFailed, msgTranscodeError, err)
	}

	res, err := s.runner.Run(ctx, job)
	if err != nil {
		return "", runFailure(res, err, domain.KindTranscodeFailed, msgTranscodeError, s.transcoder.Tool())
	}

	failure := func(extra string) error {
		return &domain.Error{
			Kind:    domain.KindTranscodeFailed,
			Message: msgTranscodeFailed,
			Tool:    s.transcoder.Tool(),
			Stderr:  appendLine(res.Stderr, extra),
		}
	}

	if !res.Succeeded() {
		return "", failure(fmt.Sprintf("%s exited with code %d", s.transcoder.Tool(), res.ExitCode))
	}
	size, partial, err := inspectArtifact(output, s.minBytes)
	if err != nil {
		return "", failure(err.Error())
	}
	if partial != nil {
		return "", failure(fmt.Sprintf("output has only %d bytes", size))
	}

	s.logger.Info("Transcode finished", zap.String("ext", ext), zap.String("path", output), zap.Int64("size", size))
	return output, nil
}

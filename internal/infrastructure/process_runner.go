package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/metrics"
)

const (
	defaultMaxStderrBytes = 1 << 20
	maxLoggedLineBytes    = 64 << 10
	// pipes held open by grandchildren (ffmpeg under yt-dlp) are force-closed after this
	processWaitDelay = 5 * time.Second
)

// ProcessRunner runs jobs as child processes without a shell
type ProcessRunner struct {
	logger         *zap.Logger
	maxStderrBytes int
	timeout        time.Duration
}

// NewProcessRunner creates a runner that logs to the process log category
func NewProcessRunner(logger *zap.Logger, config *domain.DownloadConfig) *ProcessRunner {
	r := &ProcessRunner{logger: logger, maxStderrBytes: defaultMaxStderrBytes}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if config != nil {
		if config.MaxDiagnosticBytes > 0 {
			r.maxStderrBytes = config.MaxDiagnosticBytes
		}
		r.timeout = config.JobTimeout
	}
	return r
}

// Run executes job and waits for it. Cancelling ctx kills the child.
func (r *ProcessRunner) Run(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	if job.Output == domain.OutputStream && job.Stream == nil {
		return nil, fmt.Errorf("%s: stream job without a sink", job.Tool)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := r.logger.With(
		zap.String("tool", job.Tool),
		zap.String("job_id", uuid.New().String()[:8]),
	)
	log.Info("Starting process",
		zap.String("command", ShellEscapeCommand(job.Binary, job.Args...)),
		zap.String("dir", job.Dir),
		zap.String("output", string(job.Output)))

	cmd := exec.CommandContext(ctx, job.Binary, job.Args...)
	cmd.Dir = job.Dir
	cmd.WaitDelay = processWaitDelay

	tail := newTailBuffer(r.maxStderrBytes)
	stderrLog := newLineLogger(log, "stderr", zapcore.InfoLevel, tail)
	cmd.Stderr = stderrLog

	var captured bytes.Buffer
	var sink *sinkWriter
	var stdoutLog *lineLogger
	switch job.Output {
	case domain.OutputCapture:
		cmd.Stdout = &captured
	case domain.OutputStream:
		sink = &sinkWriter{w: job.Stream}
		cmd.Stdout = sink
	default:
		stdoutLog = newLineLogger(log, "stdout", zapcore.DebugLevel, nil)
		cmd.Stdout = stdoutLog
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.JobsTotal.WithLabelValues(job.Tool, "spawn_error").Inc()
		log.Error("Failed to start process", zap.Error(err))
		return nil, spawnError(job, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	stderrLog.Flush()
	if stdoutLog != nil {
		stdoutLog.Flush()
	}
	metrics.JobDuration.WithLabelValues(job.Tool).Observe(elapsed.Seconds())

	result := &domain.JobResult{
		ExitCode: -1,
		Stdout:   captured.Bytes(),
		Stderr:   tail.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if sink != nil {
		result.Streamed = sink.n
	}

	if sink != nil && sink.err != nil {
		metrics.JobsTotal.WithLabelValues(job.Tool, "sink_error").Inc()
		log.Warn("Output sink failed, process stopped", zap.Int64("streamed", sink.n), zap.Error(sink.err))
		return result, fmt.Errorf("%s: writing output: %w", job.Tool, sink.err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.JobsTotal.WithLabelValues(job.Tool, "cancelled").Inc()
		log.Warn("Process cancelled", zap.Duration("elapsed", elapsed), zap.Error(ctxErr))
		return result, fmt.Errorf("%s: %w", job.Tool, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		log.Warn("Process left its output open after exiting")
	default:
		metrics.JobsTotal.WithLabelValues(job.Tool, "io_error").Inc()
		log.Error("Process I/O failed", zap.Error(waitErr))
		return result, fmt.Errorf("%s: %w", job.Tool, waitErr)
	}

	outcome := "ok"
	if !result.Succeeded() {
		outcome = "exit_nonzero"
	}
	metrics.JobsTotal.WithLabelValues(job.Tool, outcome).Inc()
	log.Info("Process exited",
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("elapsed", elapsed),
		zap.Int64("streamed", result.Streamed),
		zap.Int("stdout_bytes", len(result.Stdout)))

	return result, nil
}

// spawnError classifies a failed Start. A missing binary is reported with the job's install hint.
func spawnError(job *domain.Job, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		msg := fmt.Sprintf("%s is not installed or not in PATH.", job.Tool)
		if job.InstallHint != "" {
			msg += " " + job.InstallHint
		}
		return domain.WrapError(domain.KindToolNotFound, msg, err)
	}
	return fmt.Errorf("failed to start %s: %w", job.Tool, err)
}

// sinkWriter counts bytes and remembers the first write error of a stream sink
type sinkWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	if err != nil && s.err == nil {
		s.err = err
	}
	return n, err
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	max     int
	buf     []byte
	dropped int64
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = defaultMaxStderrBytes
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		copy(t.buf, t.buf[over:])
		t.buf = t.buf[:t.max]
		t.dropped += int64(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t.dropped == 0 {
		return string(t.buf)
	}
	return fmt.Sprintf("[%d earlier bytes omitted]\n%s", t.dropped, t.buf)
}

// lineLogger logs every line a child writes. Progress output separated by \r counts as lines too.
type lineLogger struct {
	log     *zap.Logger
	stream  string
	level   zapcore.Level
	tee     io.Writer
	pending []byte
}

func newLineLogger(log *zap.Logger, stream string, level zapcore.Level, tee io.Writer) *lineLogger {
	return &lineLogger{log: log, stream: stream, level: level, tee: tee}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	if l.tee != nil {
		_, _ = l.tee.Write(p)
	}
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexAny(l.pending, "\r\n")
		if i < 0 {
			break
		}
		l.emit(l.pending[:i])
		l.pending = append(l.pending[:0], l.pending[i+1:]...)
	}
	if len(l.pending) > maxLoggedLineBytes {
		l.Flush()
	}
	return len(p), nil
}

// Flush logs a trailing partial line
func (l *lineLogger) Flush() {
	l.emit(l.pending)
	l.pending = l.pending[:0]
}

func (l *lineLogger) emit(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if ce := l.log.Check(l.level, "Process output"); ce != nil {
		ce.Write(zap.String("stream", l.stream), zap.String("line", string(line)))
	}
}

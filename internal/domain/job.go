package domain

import (
	"context"
	"io"
)

// OutputMode tells the runner what to do with a child's stdout
type OutputMode string

const (
	OutputCapture OutputMode = "capture" // collect stdout in memory (metadata documents)
	OutputFile    OutputMode = "file"    // tool writes OutputPath itself, stdout is only logged
	OutputStream  OutputMode = "stream"  // stdout is copied into Job.Stream
)

// Job describes a single external tool invocation. A job runs once.
type Job struct {
	Tool        string // label for logs and diagnostics (yt-dlp, spotDL, ffmpeg)
	Binary      string
	Args        []string
	Dir         string
	Output      OutputMode
	OutputPath  string    // expected artifact for OutputFile, may be empty if the tool picks the name
	Stream      io.Writer // sink for OutputStream
	InstallHint string    // appended to the message when the binary cannot be found
}

// JobResult is the structured outcome of a finished job
type JobResult struct {
	ExitCode int
	Stdout   []byte // OutputCapture only
	Stderr   string // tail of everything the child wrote to stderr
	Streamed int64  // bytes copied to Job.Stream
}

// Succeeded reports a zero exit code
func (r *JobResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// JobRunner executes jobs. A non-nil error means the job could not be run to completion
// (spawn failure, cancelled context, broken stream sink); a non-zero exit is not an error.
type JobRunner interface {
	Run(ctx context.Context, job *Job) (*JobResult, error)
}

// TempAllocator hands out request-scoped temporary paths that are cleaned up automatically
type TempAllocator interface {
	// NewPath returns a unique, tracked path ending in suffix. The file is not created.
	NewPath(suffix string) string

	// NewDir creates and tracks a unique directory
	NewDir() (string, error)
}

// TempTracker is a TempAllocator that also accepts foreign paths and removes everything at the end
type TempTracker interface {
	TempAllocator

	// Track registers path for cleanup
	Track(path string)

	// Cleanup removes every tracked path, ignoring errors
	Cleanup()
}

// Transcoder builds conversion jobs for audio targets
type Transcoder interface {
	Tool() string

	// TranscodeJob converts input into output encoded for the target extension
	TranscodeJob(input, output, ext string) (*Job, error)
}

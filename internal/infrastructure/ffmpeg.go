package infrastructure

import (
	"fmt"

	"github.com/groupxyz/media-relay/internal/domain"
)

const ffmpegToolName = "ffmpeg"

type audioCodec struct {
	encoder string
	muxer   string
}

// audioCodecs maps a target extension to its encoder and container muxer
var audioCodecs = map[string]audioCodec{
	"mp3":  {encoder: "libmp3lame", muxer: "mp3"},
	"m4a":  {encoder: "aac", muxer: "ipod"},
	"webm": {encoder: "libvorbis", muxer: "webm"},
}

// FFmpegTranscoder builds audio conversion jobs
type FFmpegTranscoder struct {
	binary string
}

// NewFFmpegTranscoder creates a transcoder using the configured ffmpeg binary
func NewFFmpegTranscoder(config *domain.ToolsConfig) *FFmpegTranscoder {
	return &FFmpegTranscoder{binary: config.FFmpegBinary}
}

func (t *FFmpegTranscoder) Tool() string {
	return ffmpegToolName
}

// TranscodeJob drops any video stream and encodes the audio for ext
func (t *FFmpegTranscoder) TranscodeJob(input, output, ext string) (*domain.Job, error) {
	codec, ok := audioCodecs[ext]
	if !ok {
		return nil, fmt.Errorf("no audio codec for %q", ext)
	}
	return &domain.Job{
		Tool:   ffmpegToolName,
		Binary: t.binary,
		Args: []string{
			"-y", "-nostdin",
			"-i", input,
			"-vn",
			"-acodec", codec.encoder,
			"-f", codec.muxer,
			output,
		},
		Output:     domain.OutputFile,
		OutputPath: output,
	}, nil
}

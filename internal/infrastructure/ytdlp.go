package infrastructure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/groupxyz/media-relay/internal/domain"
)

const (
	ytdlpToolName = "yt-dlp"

	mergedVideoFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	bestAudioFormat   = "bestaudio/best"
)

// audioTargets are the quality keywords that select an audio conversion, checked in order
var audioTargets = []string{"mp3", "m4a", "webm"}

// YTDLPProvider extracts from video platforms with yt-dlp
type YTDLPProvider struct {
	binary    string
	extraArgs []string
}

// NewYTDLPProvider creates the video platform provider
func NewYTDLPProvider(config *domain.ToolsConfig) *YTDLPProvider {
	return &YTDLPProvider{
		binary:    config.YTDLPBinary,
		extraArgs: config.YTDLPExtraArgs,
	}
}

func (p *YTDLPProvider) Kind() domain.ProviderKind {
	return domain.ProviderVideoPlatform
}

func (p *YTDLPProvider) Tool() string {
	return ytdlpToolName
}

// NeedsMetadata is true: format ids and the title come from the metadata document
func (p *YTDLPProvider) NeedsMetadata() bool {
	return true
}

// MetadataJob dumps the single JSON info document for url
func (p *YTDLPProvider) MetadataJob(url string) *domain.Job {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-check-certificate",
		"--prefer-free-formats",
		"--youtube-skip-dash-manifest",
	}
	return p.job(domain.OutputCapture, append(args, p.withURL(url)...))
}

type ytdlpInfo struct {
	Title     string        `json:"title"`
	Uploader  string        `json:"uploader"`
	Artist    string        `json:"artist"`
	Channel   string        `json:"channel"`
	Duration  float64       `json:"duration"`
	ViewCount int64         `json:"view_count"`
	Thumbnail string        `json:"thumbnail"`
	Formats   []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID     string  `json:"format_id"`
	Ext          string  `json:"ext"`
	FormatNote   string  `json:"format_note"`
	QualityLabel string  `json:"quality_label"`
	Resolution   string  `json:"resolution"`
	ACodec       string  `json:"acodec"`
	VCodec       string  `json:"vcodec"`
	Filesize     float64 `json:"filesize"`
}

// ParseMetadata maps yt-dlp's info document onto MediaInfo
func (p *YTDLPProvider) ParseMetadata(stdout []byte) (*domain.MediaInfo, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.NewError(domain.KindMetadataParseFailed, "yt-dlp did not return valid metadata.")
	}

	var raw ytdlpInfo
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, domain.WrapError(domain.KindMetadataParseFailed, "Could not parse media info.", err)
	}

	info := &domain.MediaInfo{
		Title:     firstNonEmpty(raw.Title, "Unknown Title"),
		Uploader:  firstNonEmpty(raw.Uploader, raw.Artist, raw.Channel, "Unknown"),
		Duration:  formatDuration(raw.Duration),
		Views:     formatViews(raw.ViewCount),
		Thumbnail: raw.Thumbnail,
		Formats:   make([]domain.FormatInfo, 0, len(raw.Formats)),
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, domain.FormatInfo{
			Quality:  firstNonEmpty(f.FormatNote, f.QualityLabel, f.Resolution, f.ACodec, f.VCodec, "Audio"),
			Ext:      f.Ext,
			Size:     formatSize(f.Filesize),
			FormatID: f.FormatID,
		})
	}
	return info, nil
}

// PlanDownload maps the requested quality onto a yt-dlp invocation.
// An exact format id wins; otherwise mp3, m4a and webm keywords select an audio
// conversion and anything else an mp4 merge.
func (p *YTDLPProvider) PlanDownload(req domain.PlanRequest) (*domain.DownloadPlan, error) {
	if req.Temp == nil {
		return nil, fmt.Errorf("yt-dlp plan needs a temp allocator")
	}
	title := ""
	if req.Info != nil {
		title = req.Info.Title
	}

	if f := req.Info.FindFormat(req.Quality); f != nil {
		ext := firstNonEmpty(f.Ext, "bin")
		if req.DirectStream {
			job := p.job(domain.OutputStream, append([]string{"-f", f.FormatID, "-o", "-"}, p.withURL(req.URL)...))
			return &domain.DownloadPlan{Job: job, Mode: domain.DeliverStream, Ext: ext, Title: title, FailureText: ytdlpFailure(ext)}, nil
		}
		out := req.Temp.NewPath("." + ext)
		job := p.fileJob(out, []string{"-f", f.FormatID}, req.URL)
		return &domain.DownloadPlan{Job: job, Mode: domain.DeliverFile, Ext: ext, Title: title, FailureText: ytdlpFailure(ext)}, nil
	}

	target := audioTarget(req.Quality)
	if target == "" {
		out := req.Temp.NewPath(".mp4")
		job := p.fileJob(out, []string{"-f", mergedVideoFormat, "--merge-output-format", "mp4"}, req.URL)
		return &domain.DownloadPlan{Job: job, Mode: domain.DeliverFile, Ext: "mp4", Title: title, FailureText: ytdlpFailure("mp4")}, nil
	}

	in := req.Temp.NewPath("_input")
	job := p.fileJob(in, []string{"-f", bestAudioFormat}, req.URL)
	return &domain.DownloadPlan{
		Job:         job,
		Mode:        domain.DeliverFile,
		Ext:         target,
		TranscodeTo: target,
		Title:       title,
		FailureText: ytdlpFailure(""),
	}, nil
}

// ResolveOutput returns the path the plan told yt-dlp to write
func (p *YTDLPProvider) ResolveOutput(plan *domain.DownloadPlan) (string, error) {
	if plan.Job == nil || plan.Job.OutputPath == "" {
		return "", fmt.Errorf("yt-dlp plan has no output path")
	}
	return plan.Job.OutputPath, nil
}

func (p *YTDLPProvider) fileJob(out string, formatArgs []string, url string) *domain.Job {
	args := append(formatArgs, "--no-playlist", "-o", out)
	job := p.job(domain.OutputFile, append(args, p.withURL(url)...))
	job.OutputPath = out
	return job
}

func (p *YTDLPProvider) job(output domain.OutputMode, args []string) *domain.Job {
	return &domain.Job{
		Tool:   ytdlpToolName,
		Binary: p.binary,
		Args:   args,
		Output: output,
	}
}

// withURL appends the configured extra arguments and the URL
func (p *YTDLPProvider) withURL(url string) []string {
	args := make([]string, 0, len(p.extraArgs)+1)
	args = append(args, p.extraArgs...)
	return append(args, url)
}

// ytdlpFailure names the container in the summary when one is known
func ytdlpFailure(ext string) string {
	if ext == "" {
		return "yt-dlp failed or did not return a valid file!"
	}
	return fmt.Sprintf("yt-dlp failed or did not return a valid %s file!", ext)
}

// audioTarget returns the audio extension a quality keyword asks for, "" for video
func audioTarget(quality string) string {
	q := strings.ToLower(quality)
	for _, ext := range audioTargets {
		if strings.Contains(q, ext) {
			return ext
		}
	}
	return ""
}

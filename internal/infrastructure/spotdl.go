package infrastructure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/groupxyz/media-relay/internal/domain"
)

const (
	spotdlToolName    = "spotDL"
	spotdlInstallHint = "Please install spotDL (pip install spotdl)."
	spotdlFailure     = "Spotify download failed!"
	spotdlFormat      = "mp3"
	defaultBitrate    = "192k"
)

var errNoMP3 = errors.New("no MP3 file found")

// SpotDLProvider downloads music streaming tracks with spotdl.
// The "file" variant lets spotdl pick the file name inside a scratch directory;
// the "stream" variant writes MP3 bytes to stdout.
type SpotDLProvider struct {
	binary  string
	variant string
	bitrate string
}

// NewSpotDLProvider creates the music streaming provider
func NewSpotDLProvider(config *domain.ToolsConfig) *SpotDLProvider {
	p := &SpotDLProvider{
		binary:  config.SpotDLBinary,
		variant: config.SpotDLVariant,
		bitrate: config.SpotDLBitrate,
	}
	if p.variant == "" {
		p.variant = domain.SpotDLVariantFile
	}
	if p.bitrate == "" {
		p.bitrate = defaultBitrate
	}
	return p
}

func (p *SpotDLProvider) Kind() domain.ProviderKind {
	return domain.ProviderMusicStreaming
}

func (p *SpotDLProvider) Tool() string {
	return spotdlToolName
}

// NeedsMetadata is false: spotdl names and tags the track itself
func (p *SpotDLProvider) NeedsMetadata() bool {
	return false
}

// MetadataJob prints the track metadata as JSON
func (p *SpotDLProvider) MetadataJob(url string) *domain.Job {
	args := []string{"meta", url, "json"}
	if p.variant == domain.SpotDLVariantStream {
		args = []string{url, "--output", "json"}
	}
	return p.job(domain.OutputCapture, args)
}

type spotdlTrack struct {
	Title    string   `json:"title"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	Duration float64  `json:"duration"`
	CoverURL string   `json:"cover_url"`
}

// ParseMetadata accepts a single track object or a list whose first element is used
func (p *SpotDLProvider) ParseMetadata(stdout []byte) (*domain.MediaInfo, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, domain.NewError(domain.KindMetadataParseFailed, "spotDL did not return valid metadata. "+string(trimmed))
	}

	var track spotdlTrack
	var err error
	if trimmed[0] == '[' {
		var tracks []spotdlTrack
		if err = json.Unmarshal(trimmed, &tracks); err == nil {
			if len(tracks) == 0 {
				err = fmt.Errorf("empty track list")
			} else {
				track = tracks[0]
			}
		}
	} else {
		err = json.Unmarshal(trimmed, &track)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindMetadataParseFailed, "Could not parse Spotify metadata. "+string(trimmed), err)
	}

	uploader := "Spotify"
	if len(track.Artists) > 0 {
		uploader = strings.Join(track.Artists, ", ")
	}
	return &domain.MediaInfo{
		Title:     firstNonEmpty(track.Title, track.Name, "Spotify Track"),
		Uploader:  uploader,
		Duration:  formatDuration(track.Duration),
		Views:     "",
		Thumbnail: track.CoverURL,
		Formats: []domain.FormatInfo{
			{Quality: "MP3", Ext: spotdlFormat, Size: "", FormatID: spotdlFormat},
		},
	}, nil
}

// PlanDownload always yields MP3. The quality selector is not interpreted.
func (p *SpotDLProvider) PlanDownload(req domain.PlanRequest) (*domain.DownloadPlan, error) {
	args := []string{req.URL, "--format", spotdlFormat, "--bitrate", p.bitrate}

	if p.variant == domain.SpotDLVariantStream {
		job := p.job(domain.OutputStream, append(args, "--output", "-"))
		return &domain.DownloadPlan{
			Job:         job,
			Mode:        domain.DeliverStream,
			Ext:         spotdlFormat,
			Title:       trackTitleFromURL(req.URL),
			FailureText: spotdlFailure,
		}, nil
	}

	if req.Temp == nil {
		return nil, fmt.Errorf("spotdl plan needs a temp allocator")
	}
	dir, err := req.Temp.NewDir()
	if err != nil {
		return nil, err
	}
	job := p.job(domain.OutputFile, args)
	job.Dir = dir
	return &domain.DownloadPlan{
		Job:         job,
		Mode:        domain.DeliverFile,
		Ext:         spotdlFormat,
		FailureText: spotdlFailure,
	}, nil
}

// ResolveOutput picks the most recently modified MP3 in the job's working directory
func (p *SpotDLProvider) ResolveOutput(plan *domain.DownloadPlan) (string, error) {
	if plan.Job == nil || plan.Job.Dir == "" {
		return "", fmt.Errorf("spotdl plan has no working directory")
	}
	entries, err := os.ReadDir(plan.Job.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to list spotdl output: %w", err)
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), "."+spotdlFormat) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = e.Name(), mod
		}
	}
	if newest == "" {
		return "", errNoMP3
	}
	return filepath.Join(plan.Job.Dir, newest), nil
}

func (p *SpotDLProvider) job(output domain.OutputMode, args []string) *domain.Job {
	return &domain.Job{
		Tool:        spotdlToolName,
		Binary:      p.binary,
		Args:        args,
		Output:      output,
		InstallHint: spotdlInstallHint,
	}
}

// trackTitleFromURL names a streamed track after its id, e.g. spotify_4uLU6hMCjMI75M1A2tKUQC
func trackTitleFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	id := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if id == "" || strings.Contains(id, ".") {
		return "spotify_track"
	}
	return "spotify_" + id
}

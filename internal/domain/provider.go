package domain

import (
	"regexp"
	"strings"
)

// ProviderKind classifies a source URL
type ProviderKind string

const (
	ProviderVideoPlatform  ProviderKind = "video_platform"  // anything yt-dlp understands
	ProviderMusicStreaming ProviderKind = "music_streaming" // Spotify, handled by spotdl
)

// musicStreamingDomains are matched as plain substrings of the URL
var musicStreamingDomains = []string{"spotify.com"}

var localeSegment = regexp.MustCompile(`/intl-[a-z]{2}(?:-[A-Z]{2,3})?/`)

// DetectProvider classifies a URL. It never fails: unknown URLs belong to the video platform extractor.
func DetectProvider(url string) ProviderKind {
	for _, d := range musicStreamingDomains {
		if strings.Contains(url, d) {
			return ProviderMusicStreaming
		}
	}
	return ProviderVideoPlatform
}

// CanonicalURL returns the form of url the provider's tool expects.
// Music streaming links lose locale path segments (/intl-de/) and their query string.
func CanonicalURL(kind ProviderKind, url string) string {
	if kind != ProviderMusicStreaming {
		return url
	}
	canonical := localeSegment.ReplaceAllString(url, "/")
	if idx := strings.Index(canonical, "?"); idx >= 0 {
		canonical = canonical[:idx]
	}
	return canonical
}

// DeliveryMode tells how the extractor output reaches the client
type DeliveryMode string

const (
	DeliverFile   DeliveryMode = "file"   // extractor writes a temporary file, read back afterwards
	DeliverStream DeliveryMode = "stream" // extractor stdout is piped straight into the response
)

// PlanRequest carries what a provider needs to plan a download
type PlanRequest struct {
	URL          string
	Quality      string
	Info         *MediaInfo // nil when the provider does not need metadata
	Temp         TempAllocator
	DirectStream bool
}

// DownloadPlan is a provider's decision for one download
type DownloadPlan struct {
	Job         *Job
	Mode        DeliveryMode
	Ext         string // extension delivered to the client
	TranscodeTo string // non-empty when the artifact must be converted to this extension
	Title       string // unsanitized base filename; empty means use the artifact name
	FailureText string // summary line of the diagnostic when extraction fails
}

// NeedsTranscode reports whether a conversion stage follows extraction
func (p *DownloadPlan) NeedsTranscode() bool {
	return p.Mode == DeliverFile && p.TranscodeTo != ""
}

// Provider is an extraction strategy for one ProviderKind
type Provider interface {
	Kind() ProviderKind

	// Tool is the human-readable tool name used in diagnostics
	Tool() string

	// MetadataJob builds the job that prints a single JSON document for url
	MetadataJob(url string) *Job

	// ParseMetadata turns the metadata job's stdout into MediaInfo
	ParseMetadata(stdout []byte) (*MediaInfo, error)

	// NeedsMetadata reports whether PlanDownload requires MediaInfo
	NeedsMetadata() bool

	// PlanDownload builds the content job and delivery plan
	PlanDownload(req PlanRequest) (*DownloadPlan, error)

	// ResolveOutput locates the artifact a finished file-mode job produced
	ResolveOutput(plan *DownloadPlan) (string, error)
}

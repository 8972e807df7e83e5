package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/domain"
)

// MediaManager runs the info and download pipelines for one request at a time.
// It holds no per-request state, so a single instance serves all requests concurrently.
type MediaManager struct {
	providers  *ProviderSet
	extraction *extractionStage
	transcode  *transcodeStage
	newTemp    func() domain.TempTracker
	config     *domain.DownloadConfig
	logger     *zap.Logger
}

// NewMediaManager creates a new media manager
func NewMediaManager(
	providers *ProviderSet,
	transcoder domain.Transcoder,
	runner domain.JobRunner,
	newTemp func() domain.TempTracker,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *MediaManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaManager{
		providers:  providers,
		extraction: &extractionStage{runner: runner, minBytes: config.MinOutputBytes, logger: logger},
		transcode:  &transcodeStage{transcoder: transcoder, runner: runner, minBytes: config.MinOutputBytes, logger: logger},
		newTemp:    newTemp,
		config:     config,
		logger:     logger,
	}
}

// Info fetches the metadata document for url
func (m *MediaManager) Info(ctx context.Context, url string) (*domain.MediaInfo, error) {
	p, canonical, err := m.providers.Select(url)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Fetching media info",
		zap.String("url", canonical),
		zap.String("provider", string(p.Kind())))

	info, err := m.extraction.Metadata(ctx, p, canonical)
	if err != nil {
		m.logger.Warn("Media info failed", zap.String("url", canonical), zap.Error(err))
		return nil, err
	}
	return info, nil
}

// Download runs extraction, the optional transcode and delivery for req, writing
// exactly one response through resp. Temporary files are removed before it returns,
// whatever the outcome. The returned error is informational: the client has already
// been answered, except for domain.ErrStreamInterrupted where the connection must be aborted.
func (m *MediaManager) Download(ctx context.Context, req domain.DownloadRequest, resp *Responder) (err error) {
	temp := m.newTemp()
	defer temp.Cleanup()
	defer func() {
		if err != nil {
			m.deliverFailure(resp, err)
		}
	}()

	p, url, err := m.providers.Select(req.URL)
	if err != nil {
		return err
	}
	log := m.logger.With(
		zap.String("url", url),
		zap.String("provider", string(p.Kind())),
		zap.String("quality", req.Quality))

	var info *domain.MediaInfo
	if p.NeedsMetadata() {
		if info, err = m.extraction.Metadata(ctx, p, url); err != nil {
			return err
		}
	}

	plan, err := p.PlanDownload(domain.PlanRequest{
		URL:          url,
		Quality:      req.Quality,
		Info:         info,
		Temp:         temp,
		DirectStream: m.config.DirectStream,
	})
	if err != nil {
		return domain.WrapError(domain.KindInternal, "Internal server error.", err)
	}
	log.Info("Download planned",
		zap.String("mode", string(plan.Mode)),
		zap.String("ext", plan.Ext),
		zap.String("transcode_to", plan.TranscodeTo))

	if plan.Mode == domain.DeliverStream {
		sink := resp.Stream(plan.Title, plan.Ext)
		streamed, err := m.extraction.Stream(ctx, p, plan, sink)
		if err != nil && sink.Started() {
			log.Error("Stream failed after response started", zap.Int64("streamed", streamed), zap.Error(err))
			return errors.Join(domain.ErrStreamInterrupted, err)
		}
		if err == nil {
			log.Info("Download streamed", zap.Int64("bytes", streamed))
		}
		return err
	}

	path, err := m.extraction.Download(ctx, p, plan)
	if err != nil {
		return err
	}

	readFailure := domain.KindExtractionFailed
	if plan.NeedsTranscode() {
		if path, err = m.transcode.Run(ctx, path, plan.TranscodeTo, temp); err != nil {
			return err
		}
		readFailure = domain.KindTranscodeFailed
	}

	title := plan.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	sent, err := resp.SendFile(title, plan.Ext, path)
	if err != nil {
		return &domain.Error{
			Kind:    readFailure,
			Message: "Could not read the downloaded file.",
			Stderr:  err.Error(),
			Err:     err,
		}
	}
	if !sent {
		log.Warn("Response was already sent before delivery")
		return nil
	}

	log.Info("Download delivered", zap.Int64("bytes", resp.BytesSent()))
	return nil
}

// deliverFailure answers a failed download unless a response already went out.
// Failures after a subprocess ran become an error.log attachment; internal errors are JSON.
func (m *MediaManager) deliverFailure(resp *Responder, err error) {
	if resp.Responded() {
		return
	}
	e := domain.AsError(err)
	m.logger.Warn("Download failed",
		zap.String("kind", string(e.Kind)),
		zap.String("tool", e.Tool),
		zap.String("message", e.Message),
		zap.Error(e.Err))

	if e.Kind == domain.KindInternal || e.Kind == domain.KindInvalidInput {
		resp.SendJSONError(e.Kind.HTTPStatus(), e.Message)
		return
	}
	resp.SendDiagnostic(e)
}


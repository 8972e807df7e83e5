package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/app"
	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/infrastructure"
	"github.com/groupxyz/media-relay/internal/metrics"
	"github.com/groupxyz/media-relay/internal/validation"
)

const maxInfoDetail = 300

// MediaService is what the media endpoints need from the pipeline
type MediaService interface {
	Info(ctx context.Context, url string) (*domain.MediaInfo, error)
	Download(ctx context.Context, req domain.DownloadRequest, resp *app.Responder) error
}

// MediaHandler handles the info and download endpoints
type MediaHandler struct {
	media        MediaService
	history      domain.HistoryRepository
	fileDelivery string
	logger       *zap.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(media MediaService, history domain.HistoryRepository, fileDelivery string, logger *zap.Logger) *MediaHandler {
	if history == nil {
		history = infrastructure.NopHistoryRepository{}
	}
	return &MediaHandler{
		media:        media,
		history:      history,
		fileDelivery: fileDelivery,
		logger:       logger,
	}
}

// Info handles POST /api/info
func (h *MediaHandler) Info(c *gin.Context) {
	record := domain.NewRequestRecord(domain.EndpointInfo, "")

	var req domain.InfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, record, domain.WrapError(domain.KindInvalidInput, validation.MsgInvalidPayload, err))
		return
	}
	record.URL = req.URL
	if err := validation.ValidateInfoRequest(&req); err != nil {
		h.reject(c, record, err)
		return
	}
	record.Provider = domain.DetectProvider(req.URL)

	info, err := h.media.Info(c.Request.Context(), req.URL)
	h.finish(record, err)
	if err != nil {
		e := domain.AsError(err)
		c.JSON(e.Kind.HTTPStatus(), gin.H{"error": infoErrorMessage(e)})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Download handles POST /api/download. The pipeline writes the response itself.
func (h *MediaHandler) Download(c *gin.Context) {
	record := domain.NewRequestRecord(domain.EndpointDownload, "")

	var req domain.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, record, domain.WrapError(domain.KindInvalidInput, validation.MsgInvalidPayload, err))
		return
	}
	record.URL = req.URL
	record.Quality = req.Quality
	if err := validation.ValidateDownloadRequest(&req); err != nil {
		h.reject(c, record, err)
		return
	}
	record.Provider = domain.DetectProvider(req.URL)
	record.Quality = req.Quality

	resp := app.NewResponder(c.Writer, h.fileDelivery, h.logger)
	err := h.media.Download(c.Request.Context(), req, resp)
	record.BytesSent = resp.BytesSent()
	h.finish(record, err)

	if errors.Is(err, domain.ErrStreamInterrupted) {
		// headers and part of the body are out; only dropping the connection tells the client
		panic(http.ErrAbortHandler)
	}
}

// reject answers a request that failed validation; nothing was spawned for it
func (h *MediaHandler) reject(c *gin.Context, record *domain.RequestRecord, err error) {
	e := domain.AsError(err)
	h.logger.Info("Request rejected",
		zap.String("endpoint", record.Endpoint),
		zap.String("url", record.URL),
		zap.String("reason", e.Message))
	h.finish(record, e)
	c.JSON(e.Kind.HTTPStatus(), gin.H{"error": e.Message})
}

func (h *MediaHandler) finish(record *domain.RequestRecord, err error) {
	record.Finish(err)
	metrics.RequestsTotal.WithLabelValues(record.Endpoint, string(record.Status)).Inc()
	if err := h.history.Create(record); err != nil {
		h.logger.Warn("Failed to record request", zap.String("id", record.ID), zap.Error(err))
	}
}

// infoErrorMessage adds the last line the tool printed to the summary, if there is one
func infoErrorMessage(e *domain.Error) string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" || e.Kind == domain.KindToolNotFound {
		return e.Message
	}
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		stderr = strings.TrimSpace(stderr[i+1:])
	}
	if len(stderr) > maxInfoDetail {
		stderr = stderr[:maxInfoDetail]
	}
	return e.Message + " " + stderr
}

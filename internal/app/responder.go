package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/metrics"
)

const (
	fallbackTitle     = "download_groupxyz.me"
	maxFilenameLength = 80
	diagnosticName    = "error.log"
)

// errResponseClaimed is returned by a stream writer that lost the race for the response
var errResponseClaimed = errors.New("response already sent")

var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"webm": "audio/webm",
}

// ContentTypeFor returns the media type delivered for ext
func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// SanitizeFilename keeps ASCII letters, digits, '_', '-' and '.', replaces everything else
// with '_' and truncates to 80 characters. An empty title becomes the fallback name.
func SanitizeFilename(title string) string {
	if title == "" {
		title = fallbackTitle
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() == maxFilenameLength {
			break
		}
	}
	return b.String()
}

// Responder owns one HTTP response and lets exactly one terminal action write it.
// Every later attempt is a no-op that reports false.
type Responder struct {
	w            http.ResponseWriter
	fileDelivery string
	logger       *zap.Logger

	claimed   atomic.Bool
	bytesSent atomic.Int64
}

// NewResponder wraps w. fileDelivery is domain.FileDeliveryBuffered or domain.FileDeliveryStreamed.
func NewResponder(w http.ResponseWriter, fileDelivery string, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{w: w, fileDelivery: fileDelivery, logger: logger}
}

// Responded reports whether a terminal action has claimed the response
func (r *Responder) Responded() bool {
	return r.claimed.Load()
}

// BytesSent is the number of media bytes written so far
func (r *Responder) BytesSent() int64 {
	return r.bytesSent.Load()
}

func (r *Responder) claim() bool {
	return r.claimed.CompareAndSwap(false, true)
}

// SendFile delivers the artifact at path as "<sanitized title>.<ext>". The file is opened
// (and in buffered mode read) before the response is claimed, so a read error leaves the
// response free for a diagnostic. sent is false when another action already responded.
func (r *Responder) SendFile(title, ext, path string) (sent bool, err error) {
	var body io.Reader
	var size int64

	if r.fileDelivery == domain.FileDeliveryBuffered {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		body, size = bytes.NewReader(data), int64(len(data))
	} else {
		f, err := os.Open(path)
		if err != nil {
			return false, err
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return false, err
		}
		body, size = f, fi.Size()
	}

	if !r.claim() {
		r.logger.Warn("Response already sent, dropping file", zap.String("path", path))
		return false, nil
	}

	r.setAttachment(title, ext)
	r.w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	r.w.WriteHeader(http.StatusOK)
	n, err := io.Copy(r.w, body)
	r.bytesSent.Add(n)
	metrics.BytesDelivered.WithLabelValues(r.fileDelivery).Add(float64(n))
	if err != nil {
		// headers are out; the client sees a short body
		r.logger.Warn("File delivery interrupted", zap.Int64("sent", n), zap.Int64("size", size), zap.Error(err))
	}
	return true, nil
}

// SendDiagnostic answers with a text/plain error.log attachment:
// the summary line, the child's stderr and any partial output, newline separated.
func (r *Responder) SendDiagnostic(e *domain.Error) bool {
	if !r.claim() {
		r.logger.Debug("Response already sent, dropping diagnostic", zap.String("kind", string(e.Kind)))
		return false
	}

	body := make([]byte, 0, len(e.Message)+len(e.Stderr)+len(e.Partial)+2)
	body = append(body, e.Message...)
	body = append(body, '\n')
	body = append(body, e.Stderr...)
	body = append(body, '\n')
	body = append(body, e.Partial...)

	h := r.w.Header()
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", diagnosticName))
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	r.w.WriteHeader(e.Kind.HTTPStatus())
	_, _ = r.w.Write(body)
	return true
}

// SendJSONError answers with {"error": message}
func (r *Responder) SendJSONError(status int, message string) bool {
	if !r.claim() {
		return false
	}
	body, _ := json.Marshal(map[string]string{"error": message})
	r.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	r.w.WriteHeader(status)
	_, _ = r.w.Write(body)
	return true
}

// Stream returns a writer that claims the response with its first Write.
// Until then the response is still free for an error.
func (r *Responder) Stream(title, ext string) *StreamWriter {
	return &StreamWriter{r: r, title: title, ext: ext}
}

func (r *Responder) setAttachment(title, ext string) {
	filename := SanitizeFilename(title) + "." + ext
	h := r.w.Header()
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Type", ContentTypeFor(ext))
}

// StreamWriter pipes extractor stdout into the response
type StreamWriter struct {
	r       *Responder
	title   string
	ext     string
	started bool
}

// Started reports whether headers (and at least one chunk) were written
func (s *StreamWriter) Started() bool {
	return s.started
}

func (s *StreamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.started {
		if !s.r.claim() {
			return 0, errResponseClaimed
		}
		s.started = true
		s.r.setAttachment(s.title, s.ext)
		s.r.w.WriteHeader(http.StatusOK)
	}
	n, err := s.r.w.Write(p)
	s.r.bytesSent.Add(int64(n))
	metrics.BytesDelivered.WithLabelValues("stream").Add(float64(n))
	if f, ok := s.r.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

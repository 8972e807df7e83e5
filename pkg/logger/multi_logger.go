package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryAccess  LogCategory = "access"  // one line per HTTP request
	CategoryProcess LogCategory = "process" // external tool command lines, stderr, exit codes
	CategoryError   LogCategory = "error"   // application errors and recovered panics
)

// Categories lists every category in display order
var Categories = []LogCategory{CategoryAccess, CategoryProcess, CategoryError}

// ValidCategory reports whether c is a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type categoryLogger struct {
	logger *zap.Logger
	file   *os.File
	level  zapcore.Level
}

// MultiLogger writes each category as JSON lines to its own dated file
// (<category>-YYYYMMDD.log) and rolls over to a new file when the date changes.
type MultiLogger struct {
	config      MultiLoggerConfig
	loggers     map[LogCategory]*categoryLogger
	mu          sync.RWMutex
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config:  config,
		loggers: make(map[LogCategory]*categoryLogger),
		now:     time.Now,
	}
	ml.currentDate = ml.now().Format("20060102")

	for _, category := range Categories {
		catLevel := level
		if category == CategoryError {
			catLevel = zapcore.ErrorLevel
		}
		cl, err := ml.openCategory(category, catLevel)
		if err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.loggers[category] = cl
	}

	return ml, nil
}

func (ml *MultiLogger) openCategory(category LogCategory, level zapcore.Level) (*categoryLogger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	file, err := os.OpenFile(ml.logPath(category), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	return &categoryLogger{
		logger: zap.New(core).With(zap.String("category", string(category))),
		file:   file,
		level:  level,
	}, nil
}

func (ml *MultiLogger) logPath(category LogCategory) string {
	filename := fmt.Sprintf("%s-%s.log", category, ml.now().Format("20060102"))
	return filepath.Join(ml.config.LogsDir, filename)
}

// rotate reopens every category file when the date has changed
func (ml *MultiLogger) rotate() {
	today := ml.now().Format("20060102")

	ml.mu.RLock()
	same := today == ml.currentDate
	ml.mu.RUnlock()
	if same {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if today == ml.currentDate {
		return
	}
	for category, old := range ml.loggers {
		cl, err := ml.openCategory(category, old.level)
		if err != nil {
			continue
		}
		_ = old.logger.Sync()
		_ = old.file.Close()
		ml.loggers[category] = cl
	}
	ml.currentDate = today
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()
	if cl, ok := ml.loggers[category]; ok {
		return cl.logger
	}
	if cl, ok := ml.loggers[CategoryError]; ok {
		return cl.logger
	}
	return zap.NewNop()
}

// Access returns the HTTP access logger
func (ml *MultiLogger) Access() *zap.Logger {
	return ml.GetLogger(CategoryAccess)
}

// Process returns the external process logger
func (ml *MultiLogger) Process() *zap.Logger {
	return ml.GetLogger(CategoryProcess)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, cl := range ml.loggers {
		if err := cl.logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all log files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, cl := range ml.loggers {
		_ = cl.logger.Sync()
		if err := cl.file.Close(); err != nil {
			lastErr = err
		}
	}
	ml.loggers = map[LogCategory]*categoryLogger{}
	return lastErr
}

// Tee returns a logger that writes to base and to the category file. The category side
// looks up the current file on every entry, so it keeps working across date rollovers.
func (ml *MultiLogger) Tee(base *zap.Logger, category LogCategory) *zap.Logger {
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &categoryCore{ml: ml, category: category})
	}))
}

// categoryCore forwards entries to whichever file currently backs its category
type categoryCore struct {
	ml       *MultiLogger
	category LogCategory
	fields   []zapcore.Field
}

func (c *categoryCore) current() zapcore.Core {
	return c.ml.GetLogger(c.category).Core()
}

func (c *categoryCore) Enabled(level zapcore.Level) bool {
	return c.current().Enabled(level)
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &categoryCore{ml: c.ml, category: c.category, fields: merged}
}

func (c *categoryCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *categoryCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	core := c.current()
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(entry, fields)
}

func (c *categoryCore) Sync() error {
	return c.current().Sync()
}

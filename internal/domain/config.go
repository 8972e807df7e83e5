package domain

import (
	"os"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Download  DownloadConfig  `mapstructure:"download"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// TLSConfig points at the certificate pair loaded at startup
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// spotdl invocation variants
const (
	SpotDLVariantFile   = "file"   // spotdl meta URL json; download into a work dir
	SpotDLVariantStream = "stream" // spotdl URL --output json; download with --output -
)

// ToolsConfig names the external binaries and how to call them
type ToolsConfig struct {
	YTDLPBinary    string   `mapstructure:"ytdlp_binary"`
	YTDLPExtraArgs []string `mapstructure:"ytdlp_extra_args"`
	SpotDLBinary   string   `mapstructure:"spotdl_binary"`
	SpotDLVariant  string   `mapstructure:"spotdl_variant"`
	SpotDLBitrate  string   `mapstructure:"spotdl_bitrate"`
	FFmpegBinary   string   `mapstructure:"ffmpeg_binary"`
}

// file delivery modes
const (
	FileDeliveryBuffered = "buffered" // read the whole artifact, then write it
	FileDeliveryStreamed = "streamed" // copy from an open handle
)

// DownloadConfig contains download pipeline configuration
type DownloadConfig struct {
	TempDir            string        `mapstructure:"temp_dir"`
	MinOutputBytes     int64         `mapstructure:"min_output_bytes"`
	MaxDiagnosticBytes int           `mapstructure:"max_diagnostic_bytes"`
	DirectStream       bool          `mapstructure:"direct_stream"`
	FileDelivery       string        `mapstructure:"file_delivery"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"` // 0 = no limit
}

// RateLimitConfig limits requests per client IP on /api
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CORSConfig contains the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HistoryConfig contains request history persistence configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // categorized JSON logs
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			TLS: TLSConfig{
				Enabled:  true,
				CertFile: "/etc/letsencrypt/live/downloader.groupxyz.me/fullchain.pem",
				KeyFile:  "/etc/letsencrypt/live/downloader.groupxyz.me/privkey.pem",
			},
		},
		Tools: ToolsConfig{
			YTDLPBinary:   "yt-dlp",
			SpotDLBinary:  "spotdl",
			SpotDLVariant: SpotDLVariantFile,
			SpotDLBitrate: "192k",
			FFmpegBinary:  "ffmpeg",
		},
		Download: DownloadConfig{
			TempDir:            os.TempDir(),
			MinOutputBytes:     1000,
			MaxDiagnosticBytes: 1 << 20,
			DirectStream:       false,
			FileDelivery:       FileDeliveryStreamed,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 10,
			Window:   15 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"https://downloader.groupxyz.me",
				"http://downloader.groupxyz.me",
				"https://groupxyz.me",
				"http://groupxyz.me",
				"http://localhost:3000",
				"http://localhost:8080",
				"http://127.0.0.1:3000",
			},
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.media-relay/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/.media-relay/logs",
		},
	}
}

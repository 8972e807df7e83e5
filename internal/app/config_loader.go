package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/groupxyz/media-relay/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. MEDIARELAY_SERVER_PORT
const EnvPrefix = "MEDIARELAY"

// LoadConfig loads configuration from defaults, an optional file, .env and the environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.media-relay")
		v.AddConfigPath("/etc/media-relay")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every leaf key so AutomaticEnv also applies to keys
// the config file does not mention
func bindEnvKeys(v *viper.Viper, config *domain.Config) {
	for key := range configValues(config) {
		_ = v.BindEnv(key)
	}
}

// configValues flattens the config into viper keys
func configValues(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                   c.Server.Host,
		"server.port":                   c.Server.Port,
		"server.read_timeout":           c.Server.ReadTimeout.String(),
		"server.shutdown_timeout":       c.Server.ShutdownTimeout.String(),
		"server.tls.enabled":            c.Server.TLS.Enabled,
		"server.tls.cert_file":          c.Server.TLS.CertFile,
		"server.tls.key_file":           c.Server.TLS.KeyFile,
		"tools.ytdlp_binary":            c.Tools.YTDLPBinary,
		"tools.ytdlp_extra_args":        c.Tools.YTDLPExtraArgs,
		"tools.spotdl_binary":           c.Tools.SpotDLBinary,
		"tools.spotdl_variant":          c.Tools.SpotDLVariant,
		"tools.spotdl_bitrate":          c.Tools.SpotDLBitrate,
		"tools.ffmpeg_binary":           c.Tools.FFmpegBinary,
		"download.temp_dir":             c.Download.TempDir,
		"download.min_output_bytes":     c.Download.MinOutputBytes,
		"download.max_diagnostic_bytes": c.Download.MaxDiagnosticBytes,
		"download.direct_stream":        c.Download.DirectStream,
		"download.file_delivery":        c.Download.FileDelivery,
		"download.job_timeout":          c.Download.JobTimeout.String(),
		"rate_limit.enabled":            c.RateLimit.Enabled,
		"rate_limit.requests":           c.RateLimit.Requests,
		"rate_limit.window":             c.RateLimit.Window.String(),
		"cors.allowed_origins":          c.CORS.AllowedOrigins,
		"history.enabled":               c.History.Enabled,
		"history.database_path":         c.History.DatabasePath,
		"logging.level":                 c.Logging.Level,
		"logging.format":                c.Logging.Format,
		"logging.output_path":           c.Logging.OutputPath,
		"logging.logs_dir":              c.Logging.LogsDir,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.TempDir = expandPath(config.Download.TempDir)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)
	config.Server.TLS.CertFile = expandPath(config.Server.TLS.CertFile)
	config.Server.TLS.KeyFile = expandPath(config.Server.TLS.KeyFile)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.TLS.Enabled && (config.Server.TLS.CertFile == "" || config.Server.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but certificate or key file not configured")
	}

	if config.Tools.YTDLPBinary == "" || config.Tools.FFmpegBinary == "" || config.Tools.SpotDLBinary == "" {
		return fmt.Errorf("tool binaries must not be empty")
	}

	switch config.Tools.SpotDLVariant {
	case domain.SpotDLVariantFile, domain.SpotDLVariantStream:
	default:
		return fmt.Errorf("unknown spotdl variant: %q", config.Tools.SpotDLVariant)
	}

	switch config.Download.FileDelivery {
	case domain.FileDeliveryBuffered, domain.FileDeliveryStreamed:
	default:
		return fmt.Errorf("unknown file delivery mode: %q", config.Download.FileDelivery)
	}

	if config.Download.MinOutputBytes < 0 {
		return fmt.Errorf("min output bytes cannot be negative")
	}

	if config.Download.JobTimeout < 0 {
		return fmt.Errorf("job timeout cannot be negative")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests < 1 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs a positive request count and window")
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Quota store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Settings is the full runtime configuration of the service and the CLI.
type Settings struct {
	OpenAI        OpenAISettings        `yaml:"openai"`
	Transcription TranscriptionSettings `yaml:"transcription"`
	Quota         QuotaSettings         `yaml:"quota"`
	Media         MediaSettings         `yaml:"media"`
	HTTP          HTTPSettings          `yaml:"http"`
	Archive       ArchiveSettings       `yaml:"archive"`
	App           AppSettings           `yaml:"app"`

	// RequireAPIKey makes Validate reject a missing OpenAI key. Commands
	// that never call the remote API leave it off.
	RequireAPIKey bool `yaml:"-"`
}

type OpenAISettings struct {
	APIKey         string `yaml:"api_key"`
	Organization   string `yaml:"organization"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	HTTPTimeoutSec int    `yaml:"http_timeout_sec"`
}

type TranscriptionSettings struct {
	Language string `yaml:"language"`
	// TimeoutSec bounds the wait for each chunk.
	TimeoutSec int `yaml:"timeout_sec"`
}

type QuotaSettings struct {
	DefaultSeconds int64         `yaml:"default_seconds"`
	Store          string        `yaml:"store"`
	SQLitePath     string        `yaml:"sqlite_path"`
	DatabaseURL    string        `yaml:"database_url"`
	Redis          RedisSettings `yaml:"redis"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MediaSettings struct {
	AudioDir      string `yaml:"audio_dir"`
	FFmpegBinary  string `yaml:"ffmpeg_binary"`
	FFprobeBinary string `yaml:"ffprobe_binary"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
}

type HTTPSettings struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	AdminToken     string `yaml:"admin_token"`
	PaymentPageURL string `yaml:"payment_page_url"`
}

// ArchiveSettings enable the transcript archive when Endpoint is set.
type ArchiveSettings struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type AppSettings struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used when neither a file nor the environment
// says otherwise.
func Default() *Settings {
	return &Settings{
		OpenAI: OpenAISettings{
			Model:          "whisper-1",
			HTTPTimeoutSec: 600,
		},
		Transcription: TranscriptionSettings{
			Language:   "ja",
			TimeoutSec: 120,
		},
		Quota: QuotaSettings{
			DefaultSeconds: 300,
			Store:          StoreSQLite,
			SQLitePath:     "data/transcribot.db",
		},
		Media: MediaSettings{
			AudioDir:      os.TempDir(),
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			MaxFileSizeMB: 25,
		},
		HTTP: HTTPSettings{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Archive: ArchiveSettings{
			Bucket: "transcripts",
		},
		App: AppSettings{
			Env:      "production",
			LogLevel: "info",
		},
	}
}

// Load builds Settings from defaults, the optional YAML file at path, and
// the environment, in that order, then validates the result.
func Load(path string) (*Settings, error) {
	settings := Default()

	if path != "" {
		path = os.ExpandEnv(path)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		settings.expandEnvironmentVariables()
	}

	if err := settings.applyEnv(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// expandEnvironmentVariables resolves "${VAR}" references to secrets kept
// out of the file.
func (s *Settings) expandEnvironmentVariables() {
	for _, field := range []*string{
		&s.OpenAI.APIKey,
		&s.OpenAI.Organization,
		&s.Quota.DatabaseURL,
		&s.Quota.Redis.Password,
		&s.HTTP.AdminToken,
		&s.Archive.AccessKey,
		&s.Archive.SecretKey,
	} {
		*field = expandEnvReference(*field)
	}
}

func (s *Settings) applyEnv() error {
	overrideString("OPENAI_API_KEY", &s.OpenAI.APIKey)
	overrideString("OPENAI_ORGANIZATION", &s.OpenAI.Organization)
	overrideString("OPENAI_BASE_URL", &s.OpenAI.BaseURL)
	overrideString("OPENAI_MODEL", &s.OpenAI.Model)
	overrideString("TRANSCRIPTION_LANGUAGE", &s.Transcription.Language)
	overrideString("QUOTA_STORE", &s.Quota.Store)
	overrideString("SQLITE_PATH", &s.Quota.SQLitePath)
	overrideString("DATABASE_URL", &s.Quota.DatabaseURL)
	overrideString("REDIS_ADDR", &s.Quota.Redis.Addr)
	overrideString("REDIS_PASSWORD", &s.Quota.Redis.Password)
	overrideString("AUDIO_DIR", &s.Media.AudioDir)
	overrideString("FFMPEG_BINARY", &s.Media.FFmpegBinary)
	overrideString("FFPROBE_BINARY", &s.Media.FFprobeBinary)
	overrideString("HTTP_HOST", &s.HTTP.Host)
	overrideString("HTTP_PORT", &s.HTTP.Port)
	overrideString("ADMIN_TOKEN", &s.HTTP.AdminToken)
	overrideString("PAYMENT_PAGE_URL", &s.HTTP.PaymentPageURL)
	overrideString("MINIO_ENDPOINT", &s.Archive.Endpoint)
	overrideString("MINIO_ACCESS_KEY", &s.Archive.AccessKey)
	overrideString("MINIO_SECRET_KEY", &s.Archive.SecretKey)
	overrideString("MINIO_BUCKET", &s.Archive.Bucket)
	overrideString("APP_ENV", &s.App.Env)
	overrideString("LOG_LEVEL", &s.App.LogLevel)

	for _, err := range []error{
		overrideInt("TIMEOUT_SEC", &s.Transcription.TimeoutSec),
		overrideInt("OPENAI_HTTP_TIMEOUT_SEC", &s.OpenAI.HTTPTimeoutSec),
		overrideInt64("DEFAULT_QUOTA_SEC", &s.Quota.DefaultSeconds),
		overrideInt("LIMITATION_FILE_SIZE_MB", &s.Media.MaxFileSizeMB),
		overrideInt("REDIS_DB", &s.Quota.Redis.DB),
		overrideBool("MINIO_USE_SSL", &s.Archive.UseSSL),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// ChunkTimeout is the per-chunk wait.
func (s *Settings) ChunkTimeout() time.Duration {
	return time.Duration(s.Transcription.TimeoutSec) * time.Second
}

// HTTPTimeout bounds each OpenAI request, including ones nobody waits for.
func (s *Settings) HTTPTimeout() time.Duration {
	return time.Duration(s.OpenAI.HTTPTimeoutSec) * time.Second
}

// MaxFileSizeBytes is the upload limit.
func (s *Settings) MaxFileSizeBytes() int64 {
	return int64(s.Media.MaxFileSizeMB) << 20
}

// Addr is the HTTP listen address.
func (s *Settings) Addr() string {
	return s.HTTP.Host + ":" + s.HTTP.Port
}

// Development reports whether the console logger should be used.
func (s *Settings) Development() bool {
	return s.App.Env == "development" || s.App.Env == "dev"
}

// ArchiveEnabled reports whether transcripts should be archived.
func (s *Settings) ArchiveEnabled() bool {
	return s.Archive.Endpoint != ""
}

// Package settings loads runtime configuration from an optional YAML file and
// the environment. Priority: ENV > YAML > defaults (via env-default tags).
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
	"github.com/olgasafonova/wikiarticles/wiki"
)

// Settings is the full runtime configuration.
type Settings struct {
	Wiki   Wiki   `yaml:"wiki"`
	Cache  Cache  `yaml:"cache"`
	Log    Log    `yaml:"log"`
	Server Server `yaml:"server"`
}

// Wiki configures the Wikipedia client.
type Wiki struct {
	Language   string        `yaml:"language" env:"WIKI_LANGUAGE" env-default:"en"`
	APIURL     string        `yaml:"api_url" env:"WIKI_API_URL" env-default:"https://{lang}.wikipedia.org/w/api.php"`
	UserAgent  string        `yaml:"user_agent" env:"WIKI_USER_AGENT" env-default:"MyApp/1.0 (your@email.com)"`
	Timeout    time.Duration `yaml:"timeout" env:"WIKI_TIMEOUT" env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"WIKI_MAX_RETRIES" env-default:"3"`
}

// Cache configures the in-memory cache and the optional on-disk page store.
// An empty Dir disables the store.
type Cache struct {
	TTL      time.Duration `yaml:"ttl" env:"WIKI_CACHE_TTL" env-default:"10m"`
	Size     int           `yaml:"size" env:"WIKI_CACHE_SIZE" env-default:"500"`
	Dir      string        `yaml:"dir" env:"WIKI_CACHE_DIR"`
	StoreTTL time.Duration `yaml:"store_ttl" env:"WIKI_STORE_TTL" env-default:"24h"`
}

// Log configures the slog handler.
type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Server configures the MCP HTTP transport.
type Server struct {
	RateLimit   int   `yaml:"rate_limit" env:"HTTP_RATE_LIMIT" env-default:"60"`
	MaxBodySize int64 `yaml:"max_body_size" env:"HTTP_MAX_BODY_SIZE" env-default:"1048576"`
}

// Load reads the settings. The YAML path is path, or CONFIG_PATH when path is empty.
// A path that was named explicitly must exist; with no path, only ENV and defaults are used.
// Overrides run after the file and environment are read and before validation,
// so command-line values replace invalid ones instead of failing on them.
func Load(path string, overrides ...Override) (*Settings, error) {
	var s Settings

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("settings: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return nil, fmt.Errorf("settings: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("settings: read env: %w", err)
	}

	for _, o := range overrides {
		o(&s)
	}
	s.Wiki.Language = strings.ToLower(strings.TrimSpace(s.Wiki.Language))

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings: validate: %w", err)
	}
	return &s, nil
}

// Override replaces a loaded value, usually from a command-line flag.
type Override func(*Settings)

// WithLanguage sets the language edition when language is not blank
func WithLanguage(language string) Override {
	return func(s *Settings) {
		if strings.TrimSpace(language) != "" {
			s.Wiki.Language = language
		}
	}
}

// WithLogLevel sets the log level when level is not blank
func WithLogLevel(level string) Override {
	return func(s *Settings) {
		if strings.TrimSpace(level) != "" {
			s.Log.Level = level
		}
	}
}

// Validate checks values cleanenv cannot check by type alone.
func (s *Settings) Validate() error {
	if !wiki.ValidLanguage(s.Wiki.Language) {
		return apperrors.NewValidationError("wiki.language", s.Wiki.Language, "expected a Wikipedia language code such as \"en\"")
	}
	if !strings.Contains(s.Wiki.APIURL, "{lang}") {
		return apperrors.NewValidationError("wiki.api_url", s.Wiki.APIURL, "must contain the {lang} placeholder")
	}
	if s.Wiki.Timeout <= 0 {
		return apperrors.NewValidationError("wiki.timeout", s.Wiki.Timeout.String(), "must be positive")
	}
	if s.Wiki.MaxRetries < 0 {
		return apperrors.NewValidationError("wiki.max_retries", fmt.Sprint(s.Wiki.MaxRetries), "must not be negative")
	}
	if s.Cache.Size <= 0 {
		return apperrors.NewValidationError("cache.size", fmt.Sprint(s.Cache.Size), "must be positive")
	}
	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	return nil
}

// WikiConfig returns the client configuration.
func (s *Settings) WikiConfig() wiki.Config {
	return wiki.Config{
		APIURL:     s.Wiki.APIURL,
		UserAgent:  s.Wiki.UserAgent,
		Timeout:    s.Wiki.Timeout,
		MaxRetries: s.Wiki.MaxRetries,
		CacheTTL:   s.Cache.TTL,
		CacheSize:  s.Cache.Size,
	}
}

// LogLevel returns the configured level, or Info when it cannot be parsed.
func (s *Settings) LogLevel() slog.Level {
	level, err := ParseLevel(s.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, apperrors.NewValidationError("log.level", name, "expected debug, info, warn or error")
	}
	return level, nil
}

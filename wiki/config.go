package wiki

import (
	"regexp"
	"strings"
	"time"

	"github.com/olgasafonova/wikiarticles/internal/base"
)

// DefaultAPIURL is the action API endpoint template; {lang} is replaced by the language code.
const DefaultAPIURL = "https://{lang}.wikipedia.org/w/api.php"

// Config holds Wikipedia connection settings
type Config struct {
	// APIURL is the endpoint template, e.g. https://{lang}.wikipedia.org/w/api.php
	APIURL string

	// UserAgent identifies the client to Wikimedia
	UserAgent string

	// Timeout for API requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// CacheTTL is how long fetched pages and link lists stay cached
	CacheTTL time.Duration

	// CacheSize caps the number of cached pages
	CacheSize int
}

// DefaultConfig returns settings for the public Wikipedia editions.
func DefaultConfig() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		UserAgent:  base.DefaultUserAgent,
		Timeout:    base.DefaultTimeout,
		MaxRetries: base.DefaultMaxRetries,
		CacheTTL:   10 * time.Minute,
		CacheSize:  500,
	}
}

// Endpoint returns the API URL for one language edition.
func (c Config) Endpoint(lang string) string {
	tmpl := c.APIURL
	if tmpl == "" {
		tmpl = DefaultAPIURL
	}
	return strings.ReplaceAll(tmpl, "{lang}", lang)
}

var languagePattern = regexp.MustCompile(`^[a-z][a-z-]{1,11}$`)

// ValidLanguage reports whether code looks like a Wikipedia edition code
// ("en", "pt", "zh-min-nan", "simple").
func ValidLanguage(code string) bool {
	return languagePattern.MatchString(code)
}

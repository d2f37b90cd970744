package articles

import (
	"fmt"
	"strings"

	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
	"github.com/olgasafonova/wikiarticles/wiki"
)

// DefaultLanguage is the edition used when no language is given
const DefaultLanguage = "en"

// Config holds the language edition lookups are made against.
type Config struct {
	language string
}

// NewConfig creates a Config. An empty code selects DefaultLanguage.
func NewConfig(language string) *Config {
	c := &Config{}
	c.SetLanguage(language)
	return c
}

// Language returns the current language code
func (c *Config) Language() string {
	return c.language
}

// SetLanguage replaces the language code. It takes effect on the next lookup.
func (c *Config) SetLanguage(language string) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = DefaultLanguage
	}
	c.language = language
}

// Validate reports whether the code looks like a Wikipedia edition ("en", "zh-min-nan").
func (c *Config) Validate() error {
	if !wiki.ValidLanguage(c.language) {
		return apperrors.NewValidationError("language", c.language, "expected 2-12 lowercase letters or hyphens")
	}
	return nil
}

// ToMap returns the configuration as a map
func (c *Config) ToMap() map[string]string {
	return map[string]string{"language": c.language}
}

func (c *Config) String() string {
	return fmt.Sprintf("Config(language='%s')", c.language)
}

// Package conf holds the settings shared by the request handler and the pipeline.
// A Settings value is built once at startup and never mutated afterwards.
package conf

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

var ErrImproperlyConfigured = errors.New("improperly configured")

// ProxyHeader is a header/value pair a trusted proxy sets on secure requests.
type ProxyHeader struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// UnmatchedRoute decides what a path missing from the route table resolves to.
type UnmatchedRoute string

const (
	UnmatchedFallback UnmatchedRoute = "fallback"
	UnmatchedNotFound UnmatchedRoute = "not_found"
)

type Settings struct {
	Debug bool `yaml:"debug"`

	DefaultContentType string `yaml:"default_content_type"`
	DefaultCharset     string `yaml:"default_charset"`

	// MiddlewareClasses lists middleware names in the order they run.
	MiddlewareClasses []string `yaml:"middleware_classes"`

	UseXForwardedPort bool `yaml:"use_x_forwarded_port"`
	// SecureProxySSLHeader is disabled when nil.
	SecureProxySSLHeader *ProxyHeader `yaml:"secure_proxy_ssl_header"`

	UnmatchedRoute UnmatchedRoute `yaml:"unmatched_route"`

	// MaxStreamBuffer is the soft cap of request line buffering, in bytes.
	MaxStreamBuffer int `yaml:"max_stream_buffer"`

	RateLimit RateLimit `yaml:"rate_limit"`

	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`
}

func Default() Settings {
	return Settings{
		Debug:              false,
		DefaultContentType: "text/html",
		DefaultCharset:     "utf-8",
		MiddlewareClasses:  []string{},
		UnmatchedRoute:     UnmatchedFallback,
		MaxStreamBuffer:    64 << 20,
		RateLimit:          RateLimit{RPS: 5, Burst: 10},
		Listen:             ":8000",
		LogLevel:           "info",
	}
}

// Parse decodes YAML settings on top of [Default].
func Parse(b []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, errors.Wrap(err, "decoding settings")
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Load reads settings from a YAML file. Empty path means defaults only.
func Load(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "reading settings file")
	}

	return Parse(b)
}

// ContentTypeHeader returns the Content-Type used by responses that don't set one.
func (s *Settings) ContentTypeHeader() string {
	return s.DefaultContentType + "; charset=" + s.DefaultCharset
}

func (s *Settings) Validate() error {
	switch s.UnmatchedRoute {
	case UnmatchedFallback, UnmatchedNotFound:
	default:
		return errors.Wrapf(ErrImproperlyConfigured, "unknown unmatched_route %q", s.UnmatchedRoute)
	}

	if h := s.SecureProxySSLHeader; h != nil && (h.Name == "" || h.Value == "") {
		return errors.Wrap(ErrImproperlyConfigured,
			"secure_proxy_ssl_header must be a header name and value pair")
	}

	if _, err := htmlindex.Get(s.DefaultCharset); err != nil {
		return errors.Wrapf(ErrImproperlyConfigured, "unknown default_charset %q", s.DefaultCharset)
	}

	if _, err := parseLevel(s.LogLevel); err != nil {
		return err
	}

	return nil
}

func (s *Settings) SlogLevel() slog.Level {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, errors.Wrapf(ErrImproperlyConfigured, "unknown log_level %q", name)
	}
	return level, nil
}

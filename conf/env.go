package conf

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const envPrefix = "WEBSTACK_"

// LookupFunc matches [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// FromEnv overrides s with WEBSTACK_* variables.
// WEBSTACK_SECURE_PROXY_SSL_HEADER takes "Header-Name,value",
// WEBSTACK_MIDDLEWARE_CLASSES a comma separated list.
func FromEnv(s Settings, lookup LookupFunc) (Settings, error) {
	get := func(key string) (string, bool) { return lookup(envPrefix + key) }

	var err error
	setBool := func(key string, dst *bool) {
		if v, ok := get(key); ok && err == nil {
			*dst, err = strconv.ParseBool(v)
			err = errors.Wrapf(err, "parsing %s%s", envPrefix, key)
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	setBool("DEBUG", &s.Debug)
	setBool("USE_X_FORWARDED_PORT", &s.UseXForwardedPort)
	setString("DEFAULT_CONTENT_TYPE", &s.DefaultContentType)
	setString("DEFAULT_CHARSET", &s.DefaultCharset)
	setString("LISTEN", &s.Listen)
	setString("METRICS_LISTEN", &s.MetricsListen)
	setString("LOG_LEVEL", &s.LogLevel)
	if err != nil {
		return Settings{}, err
	}

	if v, ok := get("UNMATCHED_ROUTE"); ok {
		s.UnmatchedRoute = UnmatchedRoute(v)
	}

	if v, ok := get("MIDDLEWARE_CLASSES"); ok {
		s.MiddlewareClasses = splitList(v)
	}

	if v, ok := get("SECURE_PROXY_SSL_HEADER"); ok {
		if v == "" {
			s.SecureProxySSLHeader = nil
		} else {
			name, value, _ := strings.Cut(v, ",")
			s.SecureProxySSLHeader = &ProxyHeader{
				Name:  strings.TrimSpace(name),
				Value: strings.TrimSpace(value),
			}
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

func splitList(v string) []string {
	list := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

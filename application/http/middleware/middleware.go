// Package middleware holds the middleware that ships with the server.
package middleware

import (
	"webstack/application/http/dispatch"
	"webstack/conf"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry exposes the bundled middleware under the names used in settings.
func Registry(reg prometheus.Registerer, clk clock.Clock) dispatch.Registry {
	return dispatch.Registry{
		"metrics": func(*conf.Settings) (dispatch.Middleware, error) {
			return NewMetrics(reg, clk)
		},
		"ratelimit": func(s *conf.Settings) (dispatch.Middleware, error) {
			if s.RateLimit.RPS <= 0 {
				return nil, dispatch.ErrMiddlewareNotUsed
			}
			return NewRateLimit(s.RateLimit, clk), nil
		},
	}
}

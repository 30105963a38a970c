package dispatch

import (
	"testing"

	"webstack/application/http/semantic"
	"webstack/conf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testcases := []struct {
		desc      string
		unmatched conf.UnmatchedRoute
		path      string
		wantName  string
		wantErr   bool
	}{
		{desc: "exact match", unmatched: conf.UnmatchedFallback, path: "/ok/", wantName: ViewName(okView)},
		{desc: "no partial match", unmatched: conf.UnmatchedFallback, path: "/ok", wantName: ViewName(FallbackView)},
		{desc: "not found", unmatched: conf.UnmatchedNotFound, path: "/missing/", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			rt := NewRouter(tc.unmatched)
			rt.Handle("/ok/", okView)

			match, err := rt.Resolve(tc.path)
			if tc.wantErr {
				assert.ErrorIs(t, err, semantic.ErrNotFound)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantName, match.Name)
		})
	}
}

func TestSetFallback(t *testing.T) {
	rt := NewRouter(conf.UnmatchedFallback)
	rt.SetFallback(nilView)

	match, err := rt.Resolve("/anything")
	require.NoError(t, err)
	assert.Equal(t, "webstack/application/http/dispatch.nilView", match.Name)

	rt.SetFallback(nil)
	_, err = rt.Resolve("/anything")
	assert.ErrorIs(t, err, semantic.ErrNotFound)
}

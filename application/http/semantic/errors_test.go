package semantic

import (
	"io"
	"testing"

	iolib "webstack/lib/io"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testcases := []struct {
		desc     string
		err      error
		expected Kind
	}{
		{desc: "nil", err: nil, expected: KindUncaught},
		{desc: "plain error", err: errors.New("boom"), expected: KindUncaught},
		{desc: "not found", err: NotFound("no page %q", "/x"), expected: KindNotFound},
		{desc: "permission denied", err: PermissionDenied("nope"), expected: KindPermissionDenied},
		{desc: "view contract", err: ViewContract("view returned nothing"), expected: KindViewContract},
		{desc: "wrapped request parse", err: errors.Wrap(RequestParse(nil, "bad"), "handling"), expected: KindRequestParse},
		{desc: "stream failure", err: errors.Wrap(&iolib.StreamError{Err: io.ErrUnexpectedEOF}, "reading"), expected: KindRequestParse},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestErrorIsSentinel(t *testing.T) {
	err := errors.Wrap(NotFound("missing"), "resolving")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, NotFound("missing"))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("short body")

	assert.Equal(t, "reading body: short body", RequestParse(cause, "reading body").Error())
	assert.Equal(t, "not_found", ErrNotFound.Error())
	assert.ErrorIs(t, RequestParse(cause, "x"), cause)
}

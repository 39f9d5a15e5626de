package rerr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want bool
	}{
		{"http transport", New(HTTPTransport, "dial refused"), true},
		{"rate limited", New(RateLimited, "quota"), true},
		{"stream", New(Stream, "eof mid-stream"), true},
		{"api 503", &Error{Kind: API, Status: 503}, true},
		{"api 502", &Error{Kind: API, Status: 502}, true},
		{"api 504", &Error{Kind: API, Status: 504}, true},
		{"api 400", &Error{Kind: API, Status: 400}, false},
		{"auth failed", New(AuthenticationFailed, "bad key"), false},
		{"invalid input", New(InvalidInput, "bad json"), false},
		{"model not found", New(ModelNotFound, "gpt-9"), false},
		{"content filtered", New(ContentFiltered, "blocked"), false},
		{"context length", New(ContextLengthExceeded, "too long"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Transient())
		})
	}
}

func TestFallbackTrigger(t *testing.T) {
	assert.True(t, New(ModelNotAvailable, "").FallbackTrigger("chat"))
	assert.True(t, New(NotImplemented, "").FallbackTrigger("fetch_metadata"))
	assert.False(t, New(NotImplemented, "").FallbackTrigger("chat"))
	assert.False(t, New(AuthenticationFailed, "").FallbackTrigger("chat"))
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	d := 50 * time.Millisecond
	e := &Error{Kind: RateLimited, RetryAfter: &d}
	assert.True(t, e.Transient())
	assert.Equal(t, d, *e.RetryAfter)
}

func TestWrapUnwrap(t *testing.T) {
	cause := assert.AnError
	e := Wrap(JSON, "decode response", cause)
	assert.ErrorIs(t, e, cause)
	k, ok := KindOf(e)
	assert.True(t, ok)
	assert.Equal(t, JSON, k)
}

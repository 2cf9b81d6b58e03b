package resilience

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{429, KindRateLimited},
		{401, KindAuthExpired},
		{404, KindNotFound},
		{500, KindServerError},
		{502, KindServerError},
		{503, KindServerError},
		{400, KindOther},
		{418, KindOther},
	}
	for _, tc := range cases {
		err := FromHTTPStatus(tc.status, eris.Errorf("status %d", tc.status))
		assert.Equal(t, tc.want, err.Kind, "status %d", tc.status)
		assert.Equal(t, tc.status, err.StatusCode)
	}
}

func TestClassOfWalksWrapChain(t *testing.T) {
	inner := NewError(KindRateLimited, eris.New("upstream throttled"))
	wrapped := fmt.Errorf("route leg: %w", inner)

	assert.Equal(t, KindRateLimited, ClassOf(wrapped))
}

func TestClassOfUnclassified(t *testing.T) {
	assert.Equal(t, KindOther, ClassOf(eris.New("something odd")))
	assert.Equal(t, KindOther, ClassOf(nil))
}

func TestClassOfTransportHeuristics(t *testing.T) {
	for _, msg := range []string{
		"read tcp: connection reset by peer",
		"dial tcp: i/o timeout",
		"lookup api.example.com: no such host",
	} {
		assert.Equal(t, KindServerError, ClassOf(eris.New(msg)), msg)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(KindRateLimited, eris.New("429"))))
	assert.True(t, IsRetryable(NewError(KindServerError, eris.New("502"))))

	assert.False(t, IsRetryable(NewError(KindNotFound, eris.New("404"))))
	assert.False(t, IsRetryable(NewError(KindAuthExpired, eris.New("401"))))
	assert.False(t, IsRetryable(NewError(KindInvalidQuery, eris.New("bad filter"))))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", NewError(KindOther, eris.New("boom")).Error())
	assert.Equal(t, "not_found", (&Error{Kind: KindNotFound}).Error())
}

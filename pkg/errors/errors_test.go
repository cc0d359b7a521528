package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusOK, KindSuccess},
		{http.StatusTooManyRequests, KindRateLimited},
		{0, KindRetryable},
		{http.StatusRequestTimeout, KindRetryable},
		{http.StatusBadGateway, KindRetryable},
		{http.StatusServiceUnavailable, KindRetryable},
		{http.StatusNotFound, KindFatal},
		{http.StatusForbidden, KindFatal},
		{http.StatusUnauthorized, KindFatal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForStatus(tt.status))
		})
	}
}

func TestFromStatus(t *testing.T) {
	assert.NoError(t, FromStatus("download", http.StatusOK))

	err := FromStatus("download", http.StatusTooManyRequests)
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "download")
	assert.Contains(t, err.Error(), "429")

	err = FromStatus("download", http.StatusNotFound)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.False(t, IsRetryable(err))
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindFatal, "flickr.photos.getInfo", 1, "Photo not found")
	wrapped := fmt.Errorf("assemble 123: %w", inner)

	assert.Equal(t, KindFatal, KindOf(wrapped))
	assert.Equal(t, KindSuccess, KindOf(nil))
	assert.Equal(t, KindRetryable, KindOf(errors.New("connection reset")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindRetryable, "GET", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "order 1 not found")))
	assert.Equal(t, KindInternal, KindOf(errors.New("pq: connection refused")))

	// Kind survives wrapping with %w.
	wrapped := fmt.Errorf("loading order: %w", New(KindConflict, "order 1 was modified concurrently"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInvalidTransition, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindForbidden, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindServiceUnavailable, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(New(tt.kind, "x")), string(tt.kind))
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestClientMessageHidesUntypedDetail(t *testing.T) {
	assert.Equal(t, "order 1 not found", ClientMessage(New(KindNotFound, "order 1 not found")))
	assert.Equal(t, "internal server error", ClientMessage(errors.New("pq: duplicate key value")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("csv: wrong number of fields")
	err := Wrap(KindValidation, "malformed CSV header", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "malformed CSV header")
	assert.Contains(t, err.Error(), cause.Error())
	assert.Equal(t, "malformed CSV header", ClientMessage(err))
}

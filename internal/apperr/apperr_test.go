package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errGroupFull := New(KindGroupFull, "group is full")
	wrapped := fmt.Errorf("create booking: %w", errGroupFull)

	assert.Equal(t, KindGroupFull, KindOf(wrapped))
	assert.Equal(t, "group is full", KeyOf(wrapped))
	assert.True(t, errors.Is(wrapped, errGroupFull))
	assert.Equal(t, KindInternal, KindOf(errors.New("db down")))
}

func TestSentinelsCompareByIdentity(t *testing.T) {
	a := New(KindNotFound, "student not found")
	b := New(KindNotFound, "group not found")

	assert.False(t, errors.Is(a, b))
	assert.Equal(t, KindOf(a), KindOf(b))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindAlreadyBooked, http.StatusConflict},
		{KindGroupFull, http.StatusConflict},
		{KindNoLinkedStudent, http.StatusBadRequest},
		{KindInvalidCapacity, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

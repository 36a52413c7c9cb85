package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"inventory", Inventory("fetch", cause), true},
		{"template", Template("load", cause), true},
		{"cache write", CacheWrite("save", cause), true},
		{"archive", Archive("write", cause), true},
		{"upload", Upload("send", cause), true},
		{"capture", Capture("alice", cause), false},
		{"wrapped capture", fmt.Errorf("cycle: %w", Capture("bob", cause)), false},
		{"untyped", cause, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("update: %w", CacheWrite("save cache", cause))

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, Is(err, ErrorTypeCacheWrite))
	assert.False(t, Is(err, ErrorTypeArchive))
	assert.Equal(t, "cache_write error: save cache: disk full", stderrors.Unwrap(err).Error())
}

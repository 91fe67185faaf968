package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	assert.Equal(t, "[empty_result] query returned no rows",
		New(ErrKindEmptyResult, "query returned no rows").Error())
	assert.Equal(t, "[connection_failed] ping failed: dial tcp: connection refused",
		Wrap(ErrKindConnectionFailed, "ping failed", cause).Error())
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap(ErrKindFetchFailed, "fetch", cause))

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsFetchFailed(err))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		pred func(error) bool
	}{
		{ErrKindDependencyMissing, IsDependencyMissing},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindEmptyResult, IsEmptyResult},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidSource, IsInvalidSource},
		{ErrKindFetchFailed, IsFetchFailed},
		{ErrKindTimeout, IsTimeout},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindNotFound, IsNotFound},
		{ErrKindPermissionDenied, IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.True(t, tt.pred(New(tt.kind, "x")))
			assert.False(t, tt.pred(New(ErrKindUnknown, "x")))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.Equal(t, "unknown", ErrKind(99).String())
}

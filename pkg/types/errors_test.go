package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorf_MatchesOnlyItsSentinel(t *testing.T) {
	err := Errorf(ErrBadPointer, "0:0x40", nil)

	require.ErrorIs(t, err, ErrBadPointer)
	assert.NotErrorIs(t, err, ErrTooLarge, "same kind, different sentinel")
	assert.Equal(t, ErrKindInvalid, err.Kind)
	assert.Equal(t, "bad pointer: 0:0x40", err.Error())
}

func TestErrorf_WrapsCause(t *testing.T) {
	cause := errors.New("EIO")
	err := Errorf(ErrCorrupt, "map /dev/shm/x", cause)

	require.ErrorIs(t, err, ErrCorrupt)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "corrupt region: map /dev/shm/x: EIO", err.Error())

	wrapped := fmt.Errorf("open heap 3: %w", err)
	require.ErrorIs(t, wrapped, ErrCorrupt)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, NoError},
		{Errorf(ErrAlreadyExists, "pool 1", nil), IDFound},
		{Errorf(ErrNotFound, "pool 1", nil), IDNotFound},
		{fmt.Errorf("resize: %w", Errorf(ErrBusy, "pid 12", nil)), HeapBusy},
		{ErrCorrupt, Unrecoverable},
		{Errorf(ErrUnsupported, "riscv64", nil), Unrecoverable},
		{errors.New("boom"), Unrecoverable},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Errorf(ErrBusy, "", nil)))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(nil))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "NO_ERROR", NoError.String())
	assert.Equal(t, "ID_FOUND", IDFound.String())
	assert.Equal(t, "ID_NOT_FOUND", IDNotFound.String())
	assert.Equal(t, "HEAP_BUSY", HeapBusy.String())
	assert.Equal(t, "UNRECOVERABLE", Unrecoverable.String())
}

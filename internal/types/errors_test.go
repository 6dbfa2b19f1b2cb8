package types

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		code int32
		kind ErrorKind
	}{
		{code: -1, kind: KindAlloc},
		{code: -2, kind: KindIo},
		{code: -3, kind: KindCompressor},
		{code: -4, kind: KindInternal},
		{code: -5, kind: KindCorrupted},
		{code: -6, kind: KindUnsupported},
		{code: -7, kind: KindOverflow},
		{code: -8, kind: KindOutOfBounds},
		{code: -9, kind: KindSuperMagicMismatch},
		{code: -10, kind: KindSuperVersionMismatch},
		{code: -11, kind: KindSuperBlockSizeInvalid},
		{code: -12, kind: KindNotDirectory},
		{code: -13, kind: KindNoEntry},
		{code: -14, kind: KindLinkLoop},
		{code: -15, kind: KindNotFile},
		{code: -16, kind: KindInvalidArgument},
		{code: -17, kind: KindSequenceViolation},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := Check(tt.code, "read table")
			require.Error(t, err)

			var libErr *LibraryError
			require.True(t, errors.As(err, &libErr))
			assert.Equal(t, tt.kind, libErr.Kind)
			assert.Equal(t, "read table", libErr.Op)
			assert.Equal(t, tt.code, libErr.Kind.Code())
			assert.ErrorIs(t, err, tt.kind)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestCheckSuccess(t *testing.T) {
	for _, code := range []int32{0, 1, 4096} {
		assert.NoError(t, Check(code, "write block"))
	}
}

func TestCheckUnknownCode(t *testing.T) {
	for _, code := range []int32{-18, -99} {
		err := Check(code, "open archive")
		require.Error(t, err)

		var unknown *UnknownLibraryError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, code, unknown.Code)
		assert.Equal(t, "open archive", unknown.Op)
		assert.Contains(t, err.Error(), "open archive")

		var libErr *LibraryError
		assert.False(t, errors.As(err, &libErr))
		_, ok := KindOf(err)
		assert.False(t, ok)
	}
}

func TestErrorKindClass(t *testing.T) {
	for _, kind := range []ErrorKind{KindSuperMagicMismatch, KindSuperVersionMismatch, KindSuperBlockSizeInvalid} {
		err := NewError("read super block", kind)
		assert.ErrorIs(t, err, kind)
		assert.ErrorIs(t, err, ErrCorrupted)
		assert.NotErrorIs(t, err, ErrIo)
	}

	err := WrapError("read block", KindIo, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrIo)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, "read block: generic I/O failure: unexpected EOF", err.Error())

	assert.Equal(t, "unknown error kind -42", ErrorKind(-42).String())
}

func TestResourceError(t *testing.T) {
	var err error = &ResourceError{Op: "create compressor"}

	var resErr *ResourceError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "create compressor", resErr.Op)
	assert.Equal(t, "create compressor: did not return expected value", err.Error())

	_, ok := KindOf(err)
	assert.False(t, ok)
}

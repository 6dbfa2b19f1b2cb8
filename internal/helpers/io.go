package helpers

import (
	"errors"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// ReadExact reads exactly n bytes at offset. A read that ends early reports a
// TruncatedError; any other failure is wrapped as KindIo.
func ReadExact(file interfaces.FileReader, offset uint64, n int, op string) ([]byte, error) {
	if n < 0 {
		return nil, types.Errorf(op, types.KindInvalidArgument, "negative read length %d", n)
	}
	if offset > uint64(1<<63-1) {
		return nil, types.Errorf(op, types.KindOutOfBounds, "offset %d out of range", offset)
	}
	buf := make([]byte, n)
	read, err := file.ReadAt(buf, int64(offset))
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &types.TruncatedError{Op: fmt.Sprintf("%s at offset %d", op, offset), Want: n, Have: read}
	}
	return nil, types.WrapError(op, types.KindIo, err)
}

// WriteExact writes all of data at offset.
func WriteExact(file interfaces.FileWriter, offset uint64, data []byte, op string) error {
	if file.IsReadOnly() {
		return types.Errorf(op, types.KindIo, "file handle is read-only")
	}
	written, err := file.WriteAt(data, int64(offset))
	if err != nil {
		return types.WrapError(op, types.KindIo, err)
	}
	if written != len(data) {
		return types.Errorf(op, types.KindIo, "short write: %d of %d bytes", written, len(data))
	}
	return nil
}

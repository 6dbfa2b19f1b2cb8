package helpers

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// FieldReader decodes consecutive little endian fields from a byte slice.
// The first out-of-range read sets a sticky TruncatedError and every later
// read returns zero values.
type FieldReader struct {
	data []byte
	off  int
	op   string
	err  error
}

// NewFieldReader creates a FieldReader over data. op names the decode step in errors.
func NewFieldReader(data []byte, op string) *FieldReader {
	return &FieldReader{data: data, op: op}
}

func (r *FieldReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = &types.TruncatedError{Op: r.op, Want: r.off + n, Have: len(r.data)}
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// U16 reads a 16-bit field.
func (r *FieldReader) U16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// U32 reads a 32-bit field.
func (r *FieldReader) U32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// U64 reads a 64-bit field.
func (r *FieldReader) U64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Bytes reads n raw bytes. The result aliases the underlying slice.
func (r *FieldReader) Bytes(n int) []byte {
	return r.take(n)
}

// Offset returns the number of bytes consumed.
func (r *FieldReader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *FieldReader) Remaining() int { return len(r.data) - r.off }

// Err returns the first error encountered.
func (r *FieldReader) Err() error { return r.err }

// FieldWriter appends little endian fields to a buffer.
type FieldWriter struct {
	buf []byte
}

// NewFieldWriter creates a FieldWriter with capacity for n bytes.
func NewFieldWriter(n int) *FieldWriter {
	return &FieldWriter{buf: make([]byte, 0, n)}
}

// U16 appends a 16-bit field.
func (w *FieldWriter) U16(v uint16) *FieldWriter {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// U32 appends a 32-bit field.
func (w *FieldWriter) U32(v uint32) *FieldWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// U64 appends a 64-bit field.
func (w *FieldWriter) U64(v uint64) *FieldWriter {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Bytes appends raw bytes.
func (w *FieldWriter) Bytes(b []byte) *FieldWriter {
	w.buf = append(w.buf, b...)
	return w
}

// Data returns the encoded bytes.
func (w *FieldWriter) Data() []byte { return w.buf }

// ValidateUTF8 returns b as a string or a MalformedStringError.
func ValidateUTF8(b []byte, op string) (string, error) {
	if !utf8.Valid(b) {
		return "", &types.MalformedStringError{Op: op, Value: append([]byte(nil), b...)}
	}
	return string(b), nil
}

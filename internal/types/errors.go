package types

import (
	"errors"
	"fmt"
	"io"
)

// Error Kinds
// Failures raised while decoding an archive are reported as one of a fixed set of kinds.
// The numeric values are the status codes used by the reference SquashFS tooling, so a
// status code can be mapped to a kind and back without a lookup table on the caller side.

// ErrorKind identifies the class of a failure reported by a decode operation.
// ErrorKind implements error so it can be used directly as an errors.Is target.
type ErrorKind int32

const (
	// KindAlloc reports a failed memory allocation.
	KindAlloc ErrorKind = -1

	// KindIo reports a generic I/O failure on the file handle.
	KindIo ErrorKind = -2

	// KindCompressor reports that the compressor failed to process a block.
	KindCompressor ErrorKind = -3

	// KindInternal reports an internal inconsistency, such as an unknown inode type tag.
	KindInternal ErrorKind = -4

	// KindCorrupted reports that the archive contents are inconsistent.
	KindCorrupted ErrorKind = -5

	// KindUnsupported reports the use of a feature this decoder does not implement.
	KindUnsupported ErrorKind = -6

	// KindOverflow reports that a size computation would overflow.
	KindOverflow ErrorKind = -7

	// KindOutOfBounds reports an index or offset outside the valid range.
	KindOutOfBounds ErrorKind = -8

	// KindSuperMagicMismatch reports a super block with the wrong magic number.
	KindSuperMagicMismatch ErrorKind = -9

	// KindSuperVersionMismatch reports an archive format version other than 4.0.
	KindSuperVersionMismatch ErrorKind = -10

	// KindSuperBlockSizeInvalid reports an invalid or inconsistent block size.
	KindSuperBlockSizeInvalid ErrorKind = -11

	// KindNotDirectory reports that a path component is not a directory.
	KindNotDirectory ErrorKind = -12

	// KindNoEntry reports that a path does not exist.
	KindNoEntry ErrorKind = -13

	// KindLinkLoop reports a link loop or an over-long link chain.
	KindLinkLoop ErrorKind = -14

	// KindNotFile reports that an inode is not a regular file.
	KindNotFile ErrorKind = -15

	// KindInvalidArgument reports an invalid argument passed by the caller.
	KindInvalidArgument ErrorKind = -16

	// KindSequenceViolation reports operations performed in the wrong order,
	// for example reading a table before the super block.
	KindSequenceViolation ErrorKind = -17
)

var kindMessages = map[ErrorKind]string{
	KindAlloc:                 "failed to allocate memory",
	KindIo:                    "generic I/O failure",
	KindCompressor:            "compressor failed to extract data",
	KindInternal:              "internal error",
	KindCorrupted:             "archive file appears to be corrupted",
	KindUnsupported:           "unsupported feature used",
	KindOverflow:              "archive would overflow memory",
	KindOutOfBounds:           "out-of-bounds access attempted",
	KindSuperMagicMismatch:    "super block magic number incorrect",
	KindSuperVersionMismatch:  "unsupported archive version",
	KindSuperBlockSizeInvalid: "archive block size is invalid",
	KindNotDirectory:          "not a directory",
	KindNoEntry:               "path does not exist",
	KindLinkLoop:              "link loop detected",
	KindNotFile:               "not a regular file",
	KindInvalidArgument:       "invalid argument passed",
	KindSequenceViolation:     "library operations performed in incorrect order",
}

// String returns the human readable description of the kind.
func (k ErrorKind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error kind %d", int32(k))
}

// Error implements the error interface.
func (k ErrorKind) Error() string {
	return k.String()
}

// Code returns the status code for the kind.
func (k ErrorKind) Code() int32 {
	return int32(k)
}

// Class returns the broader kind a kind belongs to. The super block
// validation kinds all belong to the Corrupted class.
func (k ErrorKind) Class() ErrorKind {
	switch k {
	case KindSuperMagicMismatch, KindSuperVersionMismatch, KindSuperBlockSizeInvalid:
		return KindCorrupted
	default:
		return k
	}
}

// LibraryError is a failure of a named operation with a known kind.
type LibraryError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// NewError creates a LibraryError for the operation.
func NewError(op string, kind ErrorKind) error {
	return &LibraryError{Op: op, Kind: kind}
}

// WrapError creates a LibraryError for the operation that keeps the underlying cause.
func WrapError(op string, kind ErrorKind, cause error) error {
	return &LibraryError{Op: op, Kind: kind, Err: cause}
}

// Errorf creates a LibraryError whose cause is a formatted message.
func Errorf(op string, kind ErrorKind, format string, args ...any) error {
	return &LibraryError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *LibraryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Is matches the exact kind and the kind's class.
func (e *LibraryError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	if !ok {
		return false
	}
	return k == e.Kind || k == e.Kind.Class()
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// UnknownLibraryError carries a status code that has no known kind.
type UnknownLibraryError struct {
	Op   string
	Code int32
}

func (e *UnknownLibraryError) Error() string {
	return fmt.Sprintf("%s: unknown error %d in SquashFS library", e.Op, e.Code)
}

// ResourceError reports a constructor that produced no value without reporting a status.
type ResourceError struct {
	Op string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: did not return expected value", e.Op)
}

// Check maps a status code to an error. Non-negative codes are success.
func Check(code int32, op string) error {
	if code >= 0 {
		return nil
	}
	kind := ErrorKind(code)
	if _, ok := kindMessages[kind]; !ok {
		return &UnknownLibraryError{Op: op, Code: code}
	}
	return &LibraryError{Op: op, Kind: kind}
}

// KindOf returns the kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var libErr *LibraryError
	if errors.As(err, &libErr) {
		return libErr.Kind, true
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k, true
	}
	for _, kind := range []ErrorKind{KindInternal, KindLinkLoop, KindNoEntry, KindCorrupted} {
		if errors.Is(err, kind) {
			return kind, true
		}
	}
	return 0, false
}

// Host Errors
// These are raised by this package's own decoding rather than mapped from a status code.

// MalformedStringError reports a name or link target that is not valid UTF-8.
type MalformedStringError struct {
	Op    string
	Value []byte
}

func (e *MalformedStringError) Error() string {
	return fmt.Sprintf("%s: encoded string is not valid UTF-8: %q", e.Op, e.Value)
}

// TruncatedError reports a variable-length array that runs past the end of its data.
// It unwraps to io.ErrUnexpectedEOF and matches KindCorrupted.
type TruncatedError struct {
	Op   string
	Want int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s: unexpected end of data: need %d bytes, have %d", e.Op, e.Want, e.Have)
}

func (e *TruncatedError) Is(target error) bool {
	return target == KindCorrupted
}

func (e *TruncatedError) Unwrap() error {
	return io.ErrUnexpectedEOF
}

// UnknownInodeTypeError reports an inode type tag outside 1..14.
// It matches KindInternal.
type UnknownInodeTypeError struct {
	Tag uint16
}

func (e *UnknownInodeTypeError) Error() string {
	return fmt.Sprintf("unrecognized inode type tag %d", e.Tag)
}

func (e *UnknownInodeTypeError) Is(target error) bool {
	return target == KindInternal
}

// CallbackError wraps an error returned by a caller supplied callback.
type CallbackError struct {
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback returned an error: %v", e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// LinkChainError reports a symbolic link chain longer than the limit.
// It matches KindLinkLoop.
type LinkChainError struct {
	Path  string
	Limit int
}

func (e *LinkChainError) Error() string {
	return fmt.Sprintf("symbolic link chain starting at %s exceeds %d elements", e.Path, e.Limit)
}

func (e *LinkChainError) Is(target error) bool {
	return target == KindLinkLoop
}

// DanglingLinkError reports a symbolic link whose target does not exist.
// It matches KindNoEntry.
type DanglingLinkError struct {
	From string
	To   string
}

func (e *DanglingLinkError) Error() string {
	return fmt.Sprintf("dangling symbolic link from %s to %s", e.From, e.To)
}

func (e *DanglingLinkError) Is(target error) bool {
	return target == KindNoEntry
}

// Sentinels for use with errors.Is.
var (
	ErrAlloc                 error = KindAlloc
	ErrIo                    error = KindIo
	ErrCompressor            error = KindCompressor
	ErrInternal              error = KindInternal
	ErrCorrupted             error = KindCorrupted
	ErrUnsupported           error = KindUnsupported
	ErrOverflow              error = KindOverflow
	ErrOutOfBounds           error = KindOutOfBounds
	ErrSuperMagicMismatch    error = KindSuperMagicMismatch
	ErrSuperVersionMismatch  error = KindSuperVersionMismatch
	ErrSuperBlockSizeInvalid error = KindSuperBlockSizeInvalid
	ErrNotDirectory          error = KindNotDirectory
	ErrNoEntry               error = KindNoEntry
	ErrLinkLoop              error = KindLinkLoop
	ErrNotFile               error = KindNotFile
	ErrInvalidArgument       error = KindInvalidArgument
	ErrSequenceViolation     error = KindSequenceViolation
)

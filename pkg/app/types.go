package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// ArchiveTarget represents archive selection across commands
type ArchiveTarget struct {
	ArchivePath string

	// Offset is the byte offset of the archive inside the image file. A
	// negative value lets the image layer detect it.
	Offset int64
}

// Validate ensures the archive target is valid
func (at *ArchiveTarget) Validate() error {
	if at.ArchivePath == "" {
		return errors.New("archive path is required")
	}
	return nil
}

// IsEmpty returns true if no archive is specified
func (at *ArchiveTarget) IsEmpty() bool {
	return at.ArchivePath == ""
}

// String returns a string representation of the archive target
func (at *ArchiveTarget) String() string {
	if at.ArchivePath == "" {
		return "No archive"
	}
	if at.Offset >= 0 {
		return fmt.Sprintf("%s (offset %d)", at.ArchivePath, at.Offset)
	}
	return at.ArchivePath
}

// Apply points the context configuration at the target's offset. It must be
// called before the context's services are first used.
func (at *ArchiveTarget) Apply(ctx *Context) {
	if at.Offset < 0 {
		return
	}
	config := device.DefaultConfig()
	if ctx.Config != nil {
		copied := *ctx.Config
		config = &copied
	}
	config.AutoDetectOffset = false
	config.DefaultOffset = at.Offset
	ctx.Config = config
}

// ProgressUpdate represents progress information
type ProgressUpdate struct {
	Message     string
	Completed   int64
	Total       int64
	StartedAt   time.Time
	ElapsedTime time.Duration
}

// Percent calculates completion percentage
func (p *ProgressUpdate) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return int((p.Completed * 100) / p.Total)
}

// Rate calculates items per second
func (p *ProgressUpdate) Rate() float64 {
	if p.ElapsedTime == 0 {
		return 0
	}
	return float64(p.Completed) / p.ElapsedTime.Seconds()
}

// ETA estimates time to completion
func (p *ProgressUpdate) ETA() time.Duration {
	if p.Completed == 0 || p.Total == 0 {
		return 0
	}
	rate := p.Rate()
	if rate == 0 {
		return 0
	}
	remaining := p.Total - p.Completed
	return time.Duration(float64(remaining) / rate * float64(time.Second))
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeArchiveAccess = "ARCHIVE_ACCESS"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeCorrupted     = "CORRUPTED"
	ErrCodeUnsupported   = "UNSUPPORTED"
	ErrCodePermission    = "PERMISSION_DENIED"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeCanceled      = "CANCELED"
	ErrCodeInternal      = "INTERNAL"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ClassifyError returns the error code that best describes err
func ClassifyError(err error) string {
	var common *CommonError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &common):
		return common.Code
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	case errors.Is(err, os.ErrPermission):
		return ErrCodePermission
	case errors.Is(err, types.ErrNoEntry), errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, types.ErrNotDirectory), errors.Is(err, types.ErrNotFile), errors.Is(err, types.ErrInvalidArgument):
		return ErrCodeInvalidInput
	case errors.Is(err, types.ErrUnsupported):
		return ErrCodeUnsupported
	case errors.Is(err, types.ErrCorrupted), errors.Is(err, types.ErrOutOfBounds),
		errors.Is(err, types.ErrOverflow), errors.Is(err, types.ErrLinkLoop),
		errors.Is(err, types.ErrCompressor):
		return ErrCodeCorrupted
	case errors.Is(err, types.ErrIo):
		return ErrCodeArchiveAccess
	default:
		return ErrCodeInternal
	}
}

// WrapError wraps err in a CommonError whose code is chosen by ClassifyError
func WrapError(message string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(ClassifyError(err), message, err)
}

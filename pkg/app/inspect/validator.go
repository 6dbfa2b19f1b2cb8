package inspect

import (
	"strings"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Validate validates an inspection request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid archive target", err)
	}
	if r.FilePath != "" && strings.ContainsRune(r.FilePath, 0) {
		return app.NewError(app.ErrCodeInvalidInput, "file path contains a NUL byte", nil)
	}
	return nil
}

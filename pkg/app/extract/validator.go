package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Validate validates an extraction request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid archive target", err)
	}
	if r.Destination == "" {
		return app.NewError(app.ErrCodeInvalidInput, "destination is required", nil)
	}
	if info, err := os.Stat(r.Destination); err == nil && !info.IsDir() {
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("destination %s is not a directory", r.Destination), nil)
	}
	if strings.ContainsRune(r.Source, 0) {
		return app.NewError(app.ErrCodeInvalidInput, "source contains a NUL byte", nil)
	}
	for _, name := range r.Exclude {
		if _, ok := exclusionFilters[strings.ToLower(name)]; !ok {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unknown exclusion %q", name), nil)
		}
	}
	return nil
}

func (r *Request) filters() []string {
	filters := make([]string, 0, len(r.Exclude))
	for _, name := range r.Exclude {
		filters = append(filters, exclusionFilters[strings.ToLower(name)])
	}
	return filters
}

package list

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Validate validates a listing request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid archive target", err)
	}
	if strings.ContainsRune(r.Path, 0) {
		return app.NewError(app.ErrCodeInvalidInput, "path contains a NUL byte", nil)
	}
	for _, name := range r.Exclude {
		if _, ok := exclusionFilters[strings.ToLower(name)]; !ok {
			return app.NewError(app.ErrCodeInvalidInput,
				fmt.Sprintf("unknown exclusion %q (valid: %s)", name, strings.Join(validExclusions(), ", ")), nil)
		}
	}
	return nil
}

// filters converts the exclusions into tree filter names
func (r *Request) filters() []string {
	filters := make([]string, 0, len(r.Exclude))
	for _, name := range r.Exclude {
		filters = append(filters, exclusionFilters[strings.ToLower(name)])
	}
	return filters
}

func validExclusions() []string {
	names := make([]string, 0, len(exclusionFilters))
	for name := range exclusionFilters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package discover

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

const dateLayout = "2006-01-02"

var searchableTypes = map[string]bool{
	"file":         true,
	"directory":    true,
	"symlink":      true,
	"block-device": true,
	"char-device":  true,
	"fifo":         true,
	"socket":       true,
}

var sizeUnits = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
	"TB": 1024 * 1024 * 1024 * 1024,
}

// Validate validates a discovery request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid archive target", err)
	}

	if r.NamePattern != "" && r.NameRegex != "" {
		return app.NewError(app.ErrCodeInvalidInput, "cannot specify both name pattern and regex", nil)
	}
	if r.NameRegex != "" {
		if _, err := regexp.Compile(r.NameRegex); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid regex pattern", err)
		}
	}
	for _, t := range r.Types {
		if !searchableTypes[t] {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unknown type %q", t), nil)
		}
	}

	if r.MinSize != "" {
		if err := validateSizeFormat(r.MinSize); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid min-size format", err)
		}
	}
	if r.MaxSize != "" {
		if err := validateSizeFormat(r.MaxSize); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid max-size format", err)
		}
	}

	if r.ModifiedAfter != "" {
		if _, err := time.Parse(dateLayout, r.ModifiedAfter); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid date format for modified-after, use YYYY-MM-DD", err)
		}
	}
	if r.ModifiedBefore != "" {
		if _, err := time.Parse(dateLayout, r.ModifiedBefore); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid date format for modified-before, use YYYY-MM-DD", err)
		}
	}

	if r.MaxResults < 1 || r.MaxResults > 10000 {
		return app.NewError(app.ErrCodeInvalidInput, "max results must be between 1 and 10000", nil)
	}
	return nil
}

// splitSize separates a size string like "10 MB" into its number and unit
func splitSize(size string) (string, string, error) {
	size = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(size), " ", ""))
	if size == "" {
		return "", "", fmt.Errorf("empty size")
	}

	i := strings.IndexFunc(size, func(c rune) bool { return (c < '0' || c > '9') && c != '.' })
	if i < 0 {
		i = len(size)
	}
	number, unit := size[:i], size[i:]
	if number == "" {
		return "", "", fmt.Errorf("no numeric value found")
	}
	// a bare number is a byte count
	if unit == "" {
		unit = "B"
	}
	return number, unit, nil
}

// validateSizeFormat validates size format strings like "10MB", "1GB"
func validateSizeFormat(size string) error {
	number, unit, err := splitSize(size)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(number, 64); err != nil {
		return fmt.Errorf("invalid numeric value: %s", number)
	}
	if _, ok := sizeUnits[unit]; !ok {
		return fmt.Errorf("invalid size unit: %q (valid: B, KB, MB, GB, TB)", unit)
	}
	return nil
}

// ParseSize converts size string to bytes
func ParseSize(size string) (int64, error) {
	if err := validateSizeFormat(size); err != nil {
		return 0, err
	}
	number, unit, _ := splitSize(size)
	value, _ := strconv.ParseFloat(number, 64)
	return int64(value * float64(sizeUnits[unit])), nil
}

package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileResultSizeClass(t *testing.T) {
	tests := []struct {
		size int64
		want SizeClass
	}{
		{0, SizeClassTiny},
		{1023, SizeClassTiny},
		{1024, SizeClassSmall},
		{1024*1024 - 1, SizeClassSmall},
		{1024 * 1024, SizeClassMedium},
		{100 * 1024 * 1024, SizeClassLarge},
		{1024 * 1024 * 1024, SizeClassHuge},
	}

	for _, tt := range tests {
		f := FileResult{Size: tt.size}
		assert.Equal(t, tt.want, f.GetSizeClass(), "size %d", tt.size)
	}
}

func TestFileResultFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{14, "14 B"},
		{5000, "4.9 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{-1, "-1 B"},
	}

	for _, tt := range tests {
		f := FileResult{Size: tt.size}
		assert.Equal(t, tt.want, f.FormatSize())
	}
}

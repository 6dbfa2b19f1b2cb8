package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

func TestValidate(t *testing.T) {
	valid := func() Request {
		return Request{
			Target:     app.ArchiveTarget{ArchivePath: "sample.sqfs", Offset: -1},
			MaxResults: 100,
		}
	}

	tests := []struct {
		name    string
		modify  func(*Request)
		wantErr bool
	}{
		{name: "minimal", modify: func(r *Request) {}},
		{name: "all criteria", modify: func(r *Request) {
			r.NameRegex = `\.txt$`
			r.Extensions = []string{"txt"}
			r.Types = []string{"file", "symlink"}
			r.MinSize = "1 kb"
			r.MaxSize = "1.5MB"
			r.ModifiedAfter = "2023-01-01"
			r.ModifiedBefore = "2024-01-01"
			r.ContentSearch = "plans"
		}},
		{name: "byte count sizes", modify: func(r *Request) { r.MinSize = "100"; r.MaxSize = "5000" }},
		{name: "missing archive", modify: func(r *Request) { r.Target.ArchivePath = "" }, wantErr: true},
		{name: "pattern and regex", modify: func(r *Request) { r.NamePattern = "*"; r.NameRegex = "." }, wantErr: true},
		{name: "bad regex", modify: func(r *Request) { r.NameRegex = "(" }, wantErr: true},
		{name: "unknown type", modify: func(r *Request) { r.Types = []string{"volume"} }, wantErr: true},
		{name: "bad min size", modify: func(r *Request) { r.MinSize = "big" }, wantErr: true},
		{name: "bad max unit", modify: func(r *Request) { r.MaxSize = "10XB" }, wantErr: true},
		{name: "bad after date", modify: func(r *Request) { r.ModifiedAfter = "01/02/2023" }, wantErr: true},
		{name: "bad before date", modify: func(r *Request) { r.ModifiedBefore = "yesterday" }, wantErr: true},
		{name: "zero results", modify: func(r *Request) { r.MaxResults = 0 }, wantErr: true},
		{name: "too many results", modify: func(r *Request) { r.MaxResults = 10001 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.modify(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, app.ErrCodeInvalidInput, app.ClassifyError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "100", want: 100},
		{input: "100B", want: 100},
		{input: "1KB", want: 1024},
		{input: "1 kb", want: 1024},
		{input: "1.5MB", want: 1536 * 1024},
		{input: "2GB", want: 2 * 1024 * 1024 * 1024},
		{input: "", wantErr: true},
		{input: "MB", wantErr: true},
		{input: "1.2.3KB", wantErr: true},
		{input: "5PB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package discover

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/testutil"
	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

func newTestContext(t *testing.T) *app.Context {
	t.Helper()
	ctx := app.NewContext()
	ctx.Quiet = true
	ctx.ApplyVerbosity()
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func sampleTarget(t *testing.T) app.ArchiveTarget {
	t.Helper()
	path, err := testutil.SampleImage(t.TempDir())
	require.NoError(t, err)
	return app.ArchiveTarget{ArchivePath: path, Offset: -1}
}

func foundPaths(resp *Response) []string {
	out := []string{}
	for _, f := range resp.Files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

func TestHandle(t *testing.T) {
	target := sampleTarget(t)

	tests := []struct {
		name     string
		request  Request
		want     []string
		validate func(*testing.T, *Response)
	}{
		{
			name:    "everything",
			request: Request{},
			want: []string{
				"/bin", "/bin/tool", "/docs", "/docs/notes.md", "/docs/readme.txt",
				"/docs/report.pdf", "/empty", "/link", "/null",
			},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, 10, resp.Scanned)
				assert.Equal(t, "gzip", resp.ArchiveInfo.Compression)
				assert.Equal(t, uint32(10), resp.ArchiveInfo.InodeCount)
				assert.Equal(t, "/", resp.SearchQuery.StartPath)
			},
		},
		{
			name:    "name pattern",
			request: Request{NamePattern: "*.PDF"},
			want:    []string{"/docs/report.pdf"},
			validate: func(t *testing.T, resp *Response) {
				file := resp.Files[0]
				assert.Equal(t, int64(5000), file.Size)
				assert.Equal(t, "pdf", file.Extension)
				assert.Equal(t, "file", file.Type)
				assert.Equal(t, int64(testutil.SampleModificationTime), file.Modified.Unix())
			},
		},
		{
			name:    "case sensitive pattern",
			request: Request{NamePattern: "*.PDF", CaseSensitive: true},
			want:    []string{},
		},
		{
			name:    "name regex",
			request: Request{NameRegex: `^re`},
			want:    []string{"/docs/readme.txt", "/docs/report.pdf"},
		},
		{
			name:    "extension",
			request: Request{Extensions: []string{".md"}},
			want:    []string{"/docs/notes.md"},
		},
		{
			name:    "content",
			request: Request{ContentSearch: "SECRET"},
			want:    []string{"/docs/notes.md"},
		},
		{
			name:    "case sensitive content",
			request: Request{ContentSearch: "SECRET", CaseSensitive: true},
			want:    []string{},
		},
		{
			name:    "symlinks",
			request: Request{Types: []string{"symlink"}},
			want:    []string{"/link"},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "docs/readme.txt", resp.Files[0].LinkTarget)
				assert.Equal(t, "lrwxrwxrwx", resp.Files[0].Permissions)
			},
		},
		{
			name:    "devices",
			request: Request{Types: []string{"char-device", "block-device"}},
			want:    []string{"/null"},
		},
		{
			name:    "minimum size",
			request: Request{MinSize: "1KB", Types: []string{"file"}},
			want:    []string{"/bin/tool", "/docs/report.pdf"},
		},
		{
			name:    "size range",
			request: Request{MinSize: "1KB", MaxSize: "5KB"},
			want:    []string{"/docs/report.pdf"},
		},
		{
			name:    "modified before archive time",
			request: Request{ModifiedBefore: "2023-11-14", Types: []string{"file"}},
			want:    []string{},
		},
		{
			name:    "modified after",
			request: Request{ModifiedAfter: "2023-11-14", Extensions: []string{"md"}},
			want:    []string{"/docs/notes.md"},
		},
		{
			name:    "start path",
			request: Request{StartPath: "/docs", Types: []string{"file"}},
			want:    []string{"/docs/notes.md", "/docs/readme.txt", "/docs/report.pdf"},
		},
		{
			name:    "truncated",
			request: Request{Types: []string{"file"}, MaxResults: 1},
			validate: func(t *testing.T, resp *Response) {
				assert.Len(t, resp.Files, 1)
				assert.Equal(t, 4, resp.TotalFound)
				assert.True(t, resp.Truncated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.request
			req.Target = target
			if req.MaxResults == 0 {
				req.MaxResults = 100
			}

			resp, err := Handle(newTestContext(t), &req)
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, foundPaths(resp))
				assert.Equal(t, len(tt.want), resp.TotalFound)
				assert.False(t, resp.Truncated)
			}
			if tt.validate != nil {
				tt.validate(t, resp)
			}
		})
	}
}

func TestHandleErrors(t *testing.T) {
	target := sampleTarget(t)

	tests := []struct {
		name    string
		request Request
		code    string
	}{
		{
			name:    "invalid request",
			request: Request{Target: target},
			code:    app.ErrCodeInvalidInput,
		},
		{
			name:    "missing archive",
			request: Request{Target: app.ArchiveTarget{ArchivePath: "/nonexistent/archive.sqfs", Offset: -1}, MaxResults: 10},
			code:    app.ErrCodeNotFound,
		},
		{
			name:    "missing start path",
			request: Request{Target: target, StartPath: "/nope", MaxResults: 10},
			code:    app.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Handle(newTestContext(t), &tt.request)
			require.Error(t, err)
			assert.Equal(t, tt.code, app.ClassifyError(err))
		})
	}
}

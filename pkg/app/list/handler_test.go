package list

import (
	"bytes"
	"encoding/json"
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

func paths(resp *Response) []string {
	var out []string
	for _, e := range resp.Entries {
		out = append(out, e.Path)
	}
	return out
}

func TestHandle(t *testing.T) {
	target := sampleTarget(t)

	tests := []struct {
		name     string
		request  Request
		validate func(*testing.T, *Response)
	}{
		{
			name:    "root",
			request: Request{},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "/", resp.Path)
				assert.Equal(t, []string{"/docs", "/bin", "/link", "/null", "/empty"}, paths(resp))
				assert.Equal(t, Counts{Directories: 3, Symlinks: 1, Other: 1}, resp.Counts)
				null := resp.Entries[3]
				assert.Equal(t, "1:3", null.Device)
				assert.Equal(t, "crw-------", null.Permissions)
				assert.Equal(t, "docs/readme.txt", resp.Entries[2].LinkTarget)
			},
		},
		{
			name:    "recursive",
			request: Request{Recursive: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Len(t, resp.Entries, 9)
				assert.Equal(t, 4, resp.Counts.Files)
				assert.Equal(t, uint64(14+5000+13+9000), resp.TotalSize)
			},
		},
		{
			name:    "recursive with exclusions",
			request: Request{Recursive: true, Exclude: []string{"devices", "EMPTY"}},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{
					"/docs", "/docs/readme.txt", "/docs/report.pdf", "/docs/notes.md",
					"/bin", "/bin/tool", "/link",
				}, paths(resp))
			},
		},
		{
			name:    "subdirectory",
			request: Request{Path: "/docs"},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{"/docs/readme.txt", "/docs/report.pdf", "/docs/notes.md"}, paths(resp))
				assert.Equal(t, "-rw-r--r--", resp.Entries[0].Permissions)
				assert.Equal(t, uint64(14), resp.Entries[0].Size)
			},
		},
		{
			name:    "empty directory",
			request: Request{Path: "/empty"},
			validate: func(t *testing.T, resp *Response) {
				assert.Empty(t, resp.Entries)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.request
			req.Target = target
			resp, err := Handle(newTestContext(t), &req)
			require.NoError(t, err)
			tt.validate(t, resp)
		})
	}
}

func TestHandleErrors(t *testing.T) {
	target := sampleTarget(t)

	tests := []struct {
		name    string
		request Request
		errCode string
	}{
		{name: "no archive", request: Request{Target: app.ArchiveTarget{Offset: -1}}, errCode: app.ErrCodeInvalidInput},
		{name: "unknown exclusion", request: Request{Target: target, Exclude: []string{"pipes"}}, errCode: app.ErrCodeInvalidInput},
		{name: "missing path", request: Request{Target: target, Path: "/nope"}, errCode: app.ErrCodeNotFound},
		{name: "file path", request: Request{Target: target, Path: "/docs/notes.md"}, errCode: app.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Handle(newTestContext(t), &tt.request)
			require.Error(t, err)
			assert.Equal(t, tt.errCode, app.ClassifyError(err))
		})
	}
}

func TestFormatOutput(t *testing.T) {
	req := &Request{Target: sampleTarget(t), Recursive: true}
	resp, err := Handle(newTestContext(t), req)
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, app.FormatTable))
		out := buf.String()
		assert.Contains(t, out, "/link -> docs/readme.txt")
		assert.Contains(t, out, "drwxr-xr-x")
		assert.Contains(t, out, "3 directories, 4 files")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, app.FormatJSON))
		var decoded Response
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, paths(resp), paths(&decoded))
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, app.FormatYAML))
		assert.Contains(t, buf.String(), "path: /docs/report.pdf")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, &Response{Path: "/empty"}, app.FormatTable))
		assert.Equal(t, "/empty is empty.\n", buf.String())
	})
}

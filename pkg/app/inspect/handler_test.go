package inspect

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

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

func sampleRequest(t *testing.T) *Request {
	t.Helper()
	path, err := testutil.SampleImage(t.TempDir())
	require.NoError(t, err)
	return &Request{Target: app.ArchiveTarget{ArchivePath: path, Offset: -1}}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Request)
		validate func(*testing.T, *Response)
	}{
		{
			name: "summary",
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "4.0", resp.Archive.Version)
				assert.Equal(t, "gzip", resp.Archive.Compression)
				assert.Equal(t, uint32(4096), resp.Archive.BlockSize)
				assert.Equal(t, uint32(10), resp.Archive.InodeCount)
				assert.True(t, resp.Archive.Exportable)
				assert.Equal(t, int64(testutil.SampleModificationTime), resp.Archive.Modified.Unix())
				assert.Len(t, resp.Tables, 6)
				assert.Nil(t, resp.Fragments)
				assert.Nil(t, resp.File)
			},
		},
		{
			name:   "fragments",
			modify: func(r *Request) { r.ShowFragments = true },
			validate: func(t *testing.T, resp *Response) {
				require.NotEmpty(t, resp.Fragments)
				assert.Len(t, resp.Fragments, int(resp.Archive.FragmentCount))
				assert.Equal(t, uint32(0), resp.Fragments[0].Index)
			},
		},
		{
			name:   "file layout",
			modify: func(r *Request) { r.FilePath = "/docs/report.pdf" },
			validate: func(t *testing.T, resp *Response) {
				require.NotNil(t, resp.File)
				assert.Equal(t, uint64(5000), resp.File.Size)
				require.Len(t, resp.File.Blocks, 2)
				assert.Equal(t, "compressed", resp.File.Blocks[0].Kind)
				assert.Equal(t, "fragment", resp.File.Blocks[1].Kind)
				assert.Equal(t, uint64(5000-4096), resp.File.Blocks[1].LogicalSize)
			},
		},
		{
			name:   "file layout through symlink",
			modify: func(r *Request) { r.FilePath = "/link" },
			validate: func(t *testing.T, resp *Response) {
				require.NotNil(t, resp.File)
				assert.Equal(t, "/docs/readme.txt", resp.File.Path)
				require.Len(t, resp.File.Blocks, 1)
				assert.Equal(t, "fragment", resp.File.Blocks[0].Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest(t)
			if tt.modify != nil {
				tt.modify(req)
			}
			resp, err := Handle(newTestContext(t), req)
			require.NoError(t, err)
			tt.validate(t, resp)
		})
	}
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Request)
		errCode string
	}{
		{name: "missing archive", modify: func(r *Request) { r.Target.ArchivePath = "" }, errCode: app.ErrCodeInvalidInput},
		{name: "nonexistent archive", modify: func(r *Request) { r.Target.ArchivePath += ".missing" }, errCode: app.ErrCodeNotFound},
		{name: "missing file", modify: func(r *Request) { r.FilePath = "/docs/none" }, errCode: app.ErrCodeNotFound},
		{name: "directory as file", modify: func(r *Request) { r.FilePath = "/docs" }, errCode: app.ErrCodeInvalidInput},
		{name: "wrong offset", modify: func(r *Request) { r.Target.Offset = 512 }, errCode: app.ErrCodeCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest(t)
			tt.modify(req)
			_, err := Handle(newTestContext(t), req)
			require.Error(t, err)
			assert.Equal(t, tt.errCode, app.ClassifyError(err))
		})
	}
}

func TestFormatOutput(t *testing.T) {
	req := sampleRequest(t)
	req.ShowFragments = true
	req.FilePath = "/bin/tool"
	resp, err := Handle(newTestContext(t), req)
	require.NoError(t, err)

	tests := []struct {
		format   string
		validate func(*testing.T, []byte)
	}{
		{
			format: app.FormatTable,
			validate: func(t *testing.T, out []byte) {
				text := string(out)
				assert.Contains(t, text, "Compression:")
				assert.Contains(t, text, "gzip")
				assert.Contains(t, text, "xattr")
				assert.Contains(t, text, "absent")
				assert.Contains(t, text, "FRAGMENT")
				assert.Contains(t, text, "/bin/tool (9000 bytes)")
			},
		},
		{
			format: app.FormatJSON,
			validate: func(t *testing.T, out []byte) {
				var decoded Response
				require.NoError(t, json.Unmarshal(out, &decoded))
				assert.Equal(t, resp.Archive.Fingerprint, decoded.Archive.Fingerprint)
				assert.Len(t, decoded.File.Blocks, len(resp.File.Blocks))
			},
		},
		{
			format: app.FormatYAML,
			validate: func(t *testing.T, out []byte) {
				var decoded map[string]any
				require.NoError(t, yaml.Unmarshal(out, &decoded))
				assert.Contains(t, decoded, "archive")
				assert.Contains(t, decoded, "fragments")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, FormatOutput(&buf, resp, tt.format))
			tt.validate(t, buf.Bytes())
		})
	}

	assert.Error(t, FormatOutput(&bytes.Buffer{}, resp, "xml"))
}

package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/compression"
	"github.com/deploymenttheory/go-squashfs/internal/testutil"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const testBlockSize = 4096

func createTestArchive(t *testing.T) string {
	t.Helper()

	root := testutil.Dir("",
		testutil.Dir("etc",
			testutil.File("hosts", []byte("127.0.0.1 localhost\n")),
			testutil.File("motd", bytes.Repeat([]byte("welcome "), 1000)),
		),
		testutil.Symlink("hosts", "etc/hosts"),
		testutil.Device("zero", false, 1, 5),
		testutil.Dir("empty"),
	)

	comp, err := compression.New(compression.Config{Algorithm: types.CompressionGZip, BlockSize: testBlockSize})
	require.NoError(t, err)
	img, err := testutil.Build(root, testutil.Options{
		BlockSize:  testBlockSize,
		Compressor: comp,
		Fragments:  true,
		Export:     true,
	})
	require.NoError(t, err)

	path, err := img.Save(t.TempDir(), "test.sqfs")
	require.NoError(t, err)
	return path
}

func newTestFactory(t *testing.T) *ServiceFactory {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	factory := NewServiceFactory(nil, log)
	t.Cleanup(func() { factory.Shutdown() })
	return factory
}

func TestServiceFactory(t *testing.T) {
	factory := newTestFactory(t)

	require.NoError(t, factory.Initialize())
	assert.True(t, factory.IsInitialized())

	archives, err := factory.ArchiveService()
	require.NoError(t, err)
	assert.NotNil(t, archives)

	filesystem, err := factory.FilesystemService()
	require.NoError(t, err)
	assert.NotNil(t, filesystem)

	extraction, err := factory.ExtractionService()
	require.NoError(t, err)
	assert.NotNil(t, extraction)

	for _, info := range factory.ListAvailableServices() {
		assert.True(t, info.Available, info.Name)
	}

	require.NoError(t, factory.Shutdown())
	assert.False(t, factory.IsInitialized())
	require.NoError(t, factory.Shutdown())
}

func TestServiceFactoryLazyInitialization(t *testing.T) {
	factory := newTestFactory(t)
	assert.False(t, factory.IsInitialized())

	_, err := factory.FilesystemService()
	require.NoError(t, err)
	assert.True(t, factory.IsInitialized())
}

func TestArchiveService(t *testing.T) {
	path := createTestArchive(t)
	factory := newTestFactory(t)
	svc, err := factory.ArchiveService()
	require.NoError(t, err)
	ctx := context.Background()

	info, err := svc.OpenArchive(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, "gzip", info.Compression)
	assert.Equal(t, uint32(testBlockSize), info.BlockSize)
	assert.Equal(t, uint16(4), info.VersionMajor)
	assert.True(t, info.Exportable)
	assert.Len(t, info.Tables, 6)
	assert.Len(t, info.Fingerprint, 36)

	again, err := svc.OpenArchive(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, info.OpenedAt, again.OpenedAt)
	assert.Equal(t, []string{path}, svc.ListOpenArchives())

	fragments, err := svc.ListFragments(ctx, path)
	require.NoError(t, err)
	require.Len(t, fragments, int(info.FragmentCount))
	require.NotEmpty(t, fragments)
	assert.Equal(t, uint32(0), fragments[0].Index)
	assert.Greater(t, fragments[0].Offset, uint64(0))

	require.NoError(t, svc.CloseArchive(path))
	assert.Empty(t, svc.ListOpenArchives())
	require.NoError(t, svc.CloseArchive(path))
}

func TestArchiveServiceErrors(t *testing.T) {
	factory := newTestFactory(t)
	svc, err := factory.ArchiveService()
	require.NoError(t, err)

	_, err = svc.OpenArchive(context.Background(), "")
	assert.Error(t, err)

	_, err = svc.OpenArchive(context.Background(), filepath.Join(t.TempDir(), "missing.sqfs"))
	assert.ErrorIs(t, err, types.ErrIo)

	garbage := filepath.Join(t.TempDir(), "garbage.sqfs")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte{0xAB}, 512), 0o644))
	_, err = svc.OpenArchive(context.Background(), garbage)
	assert.ErrorIs(t, err, types.ErrCorrupted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.OpenArchive(ctx, garbage)
	assert.ErrorIs(t, err, context.Canceled)
}

// foreignArchiveService satisfies ArchiveService without being created by NewArchiveService
type foreignArchiveService struct {
	ArchiveService
}

func TestServiceConstructors(t *testing.T) {
	factory := newTestFactory(t)
	svc, err := factory.ArchiveService()
	require.NoError(t, err)

	fs, err := NewFilesystemService(svc)
	require.NoError(t, err)
	assert.NotNil(t, fs)

	es, err := NewExtractionService(svc)
	require.NoError(t, err)
	assert.NotNil(t, es)

	_, err = NewFilesystemService(foreignArchiveService{})
	assert.Error(t, err)
	_, err = NewExtractionService(foreignArchiveService{})
	assert.Error(t, err)
}

func TestFilesystemService(t *testing.T) {
	path := createTestArchive(t)
	factory := newTestFactory(t)
	svc, err := factory.FilesystemService()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("stat", func(t *testing.T) {
		info, err := svc.Stat(ctx, path, "/hosts", false)
		require.NoError(t, err)
		assert.Equal(t, "symlink", info.Type)
		assert.Equal(t, "etc/hosts", info.LinkTarget)

		info, err = svc.Stat(ctx, path, "/hosts", true)
		require.NoError(t, err)
		assert.Equal(t, "file", info.Type)
		assert.Equal(t, "/etc/hosts", info.Path)

		info, err = svc.Stat(ctx, path, "/zero", false)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), info.DeviceMajor)
		assert.Equal(t, uint32(5), info.DeviceMinor)

		_, err = svc.Stat(ctx, path, "/nope", false)
		assert.ErrorIs(t, err, types.ErrNoEntry)
	})

	t.Run("list directory", func(t *testing.T) {
		files, err := svc.ListDirectory(ctx, path, "/", ListOptions{})
		require.NoError(t, err)
		var names []string
		for _, f := range files {
			names = append(names, f.Path)
		}
		assert.ElementsMatch(t, []string{"/etc", "/hosts", "/zero", "/empty"}, names)
	})

	t.Run("list recursive with filters", func(t *testing.T) {
		files, err := svc.ListDirectory(ctx, path, "/", ListOptions{
			Recursive: true,
			Filters:   []string{"no-devices", "no-empty"},
		})
		require.NoError(t, err)
		var names []string
		for _, f := range files {
			names = append(names, f.Path)
		}
		assert.ElementsMatch(t, []string{"/etc", "/etc/hosts", "/etc/motd", "/hosts"}, names)
	})

	t.Run("list subdirectory", func(t *testing.T) {
		files, err := svc.ListDirectory(ctx, path, "/etc", ListOptions{})
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "/etc/hosts", files[0].Path)
	})

	t.Run("unknown filter", func(t *testing.T) {
		_, err := svc.ListDirectory(ctx, path, "/", ListOptions{Filters: []string{"no-such"}})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("list file", func(t *testing.T) {
		_, err := svc.ListDirectory(ctx, path, "/etc/hosts", ListOptions{})
		assert.ErrorIs(t, err, types.ErrNotDirectory)
	})

	t.Run("walk stops on callback error", func(t *testing.T) {
		stop := assert.AnError
		visited := 0
		err := svc.Walk(ctx, path, "/", ListOptions{Recursive: true}, func(FileInfo) error {
			visited++
			if visited == 2 {
				return stop
			}
			return nil
		})
		assert.Equal(t, stop, err)
		assert.Equal(t, 2, visited)
	})

	t.Run("read file", func(t *testing.T) {
		data, err := svc.ReadFile(ctx, path, "/etc/motd")
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte("welcome "), 1000), data)

		var buf bytes.Buffer
		n, err := svc.CopyFile(ctx, path, "/hosts", &buf)
		require.NoError(t, err)
		assert.Equal(t, int64(20), n)
		assert.Equal(t, "127.0.0.1 localhost\n", buf.String())

		_, err = svc.ReadFile(ctx, path, "/etc")
		assert.ErrorIs(t, err, types.ErrNotFile)
	})

	t.Run("file mappings", func(t *testing.T) {
		mappings, err := svc.GetFileMappings(ctx, path, "/etc/motd")
		require.NoError(t, err)
		require.Len(t, mappings, 2)
		assert.True(t, mappings[0].Compressed)
		assert.Equal(t, uint64(testBlockSize), mappings[0].LogicalSize)
		assert.True(t, mappings[1].Fragment)
		assert.Equal(t, uint64(8000-testBlockSize), mappings[1].LogicalSize)
	})
}

func TestExtractionService(t *testing.T) {
	path := createTestArchive(t)
	factory := newTestFactory(t)
	svc, err := factory.ExtractionService()
	require.NoError(t, err)
	dest := t.TempDir()

	var done, total int
	result, err := svc.Extract(context.Background(), path, "/", dest, ExtractionOptions{
		Filters:  []string{"no-devices"},
		Progress: func(d, n int) { done, total = d, n },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Directories)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Symlinks)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, uint64(20+8000), result.Bytes)
	assert.Equal(t, 6, done)
	assert.Equal(t, 6, total)

	data, err := os.ReadFile(filepath.Join(dest, "etc", "hosts"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n", string(data))

	_, err = svc.Extract(context.Background(), path, "/", dest, ExtractionOptions{})
	assert.Error(t, err)

	result, err = svc.Extract(context.Background(), path, "/etc", t.TempDir(), ExtractionOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
}

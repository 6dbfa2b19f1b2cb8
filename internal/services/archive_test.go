package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/compression"
	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/testutil"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const testBlockSize = 4096

// bigFileData spans a compressible block, a hole, an incompressible block and a tail
func bigFileData() []byte {
	data := bytes.Repeat([]byte("a"), testBlockSize)
	data = append(data, make([]byte, testBlockSize)...)
	noise := make([]byte, testBlockSize)
	state := uint32(2463534242)
	for i := range noise {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		noise[i] = byte(state)
	}
	data = append(data, noise...)
	return append(data, bytes.Repeat([]byte("tail"), 250)...)
}

func createTestTree() *testutil.Node {
	big := testutil.File("big", bigFileData())
	big.Sparse = true

	return testutil.Dir("",
		testutil.Dir("docs",
			testutil.File("readme", []byte("read me first")),
			big,
			testutil.File("exact", bytes.Repeat([]byte("x"), testBlockSize)),
			testutil.File("empty", nil),
		),
		testutil.Symlink("link", "docs/readme"),
		testutil.Device("null", false, 1, 3),
		testutil.Fifo("pipe"),
		testutil.Dir("hollow"),
	)
}

func newZstd(t *testing.T) *compression.Adapter {
	t.Helper()
	comp, err := compression.New(compression.Config{Algorithm: types.CompressionZstd, BlockSize: testBlockSize})
	require.NoError(t, err)
	return comp
}

func buildArchive(t *testing.T, opts testutil.Options) (*testutil.Image, *Archive) {
	t.Helper()
	opts.BlockSize = testBlockSize
	img, err := testutil.Build(createTestTree(), opts)
	require.NoError(t, err)

	log, _ := logtest.NewNullLogger()
	archive, err := NewArchive(img.Handle(), ArchiveOptions{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return img, archive
}

func TestNewArchive(t *testing.T) {
	img, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true, Export: true, ModificationTime: 1700000000})

	info := archive.Info()
	assert.Equal(t, types.CompressionZstd, info.Compression)
	assert.Equal(t, uint32(testBlockSize), info.BlockSize)
	assert.Equal(t, img.SuperBlock.InodeCount, info.InodeCount)
	assert.Equal(t, uint16(4), info.VersionMajor)
	assert.True(t, info.Exportable)
	assert.Equal(t, 1, info.IDCount)
	assert.Equal(t, int64(1700000000), info.ModificationTime.Unix())
	assert.Contains(t, info.Flags, "exportable")
	assert.NotNil(t, archive.ExportTable())
	assert.Equal(t, 1, archive.FragmentTable().Size())

	for _, table := range info.Tables {
		if table.Name == "xattr" {
			assert.False(t, table.Present())
		} else {
			assert.True(t, table.Present(), table.Name)
		}
	}
}

func TestNewArchiveArguments(t *testing.T) {
	_, err := NewArchive(nil, ArchiveOptions{})
	assert.Error(t, err)

	_, err = OpenArchive("", ArchiveOptions{})
	assert.Error(t, err)

	garbage := make([]byte, 4096)
	_, err = NewArchive(device.NewReadOnlyMemoryHandle(garbage), ArchiveOptions{})
	assert.ErrorIs(t, err, types.ErrCorrupted)
}

func TestFingerprint(t *testing.T) {
	opts := testutil.Options{BlockSize: testBlockSize, Fragments: true}
	img, err := testutil.Build(createTestTree(), opts)
	require.NoError(t, err)

	first, err := NewArchive(img.Handle(), ArchiveOptions{})
	require.NoError(t, err)
	second, err := NewArchive(img.Handle(), ArchiveOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first.Fingerprint())
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, uuid.Version(5), first.Fingerprint().Version())

	_, other := buildArchive(t, testutil.Options{Fragments: false})
	assert.NotEqual(t, first.Fingerprint(), other.Fingerprint())
}

func TestReadFile(t *testing.T) {
	variants := []struct {
		name string
		opts testutil.Options
	}{
		{name: "raw", opts: testutil.Options{}},
		{name: "raw with fragments", opts: testutil.Options{Fragments: true}},
		{name: "zstd", opts: testutil.Options{Compressor: newZstd(t)}},
		{name: "zstd with fragments", opts: testutil.Options{Compressor: newZstd(t), Fragments: true}},
	}

	files := []struct {
		path string
		want []byte
	}{
		{path: "/docs/readme", want: []byte("read me first")},
		{path: "/docs/big", want: bigFileData()},
		{path: "/docs/exact", want: bytes.Repeat([]byte("x"), testBlockSize)},
		{path: "/docs/empty", want: []byte{}},
		{path: "/link", want: []byte("read me first")},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			_, archive := buildArchive(t, v.opts)
			for _, f := range files {
				data, err := archive.ReadFile(f.path)
				require.NoError(t, err, f.path)
				assert.Equal(t, f.want, data, f.path)
			}
		})
	}
}

func TestReadFileErrors(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{Fragments: true})

	_, err := archive.ReadFile("/docs")
	assert.ErrorIs(t, err, types.ErrNotFile)

	_, err = archive.ReadFile("/null")
	assert.ErrorIs(t, err, types.ErrNotFile)

	_, err = archive.ReadFile("/docs/missing")
	assert.ErrorIs(t, err, types.ErrNoEntry)
}

func TestFileContentReader(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true})
	want := bigFileData()

	r, err := archive.OpenFile("/docs/big")
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), r.Size())

	t.Run("read across blocks", func(t *testing.T) {
		pos, err := r.Seek(testBlockSize-10, io.SeekStart)
		require.NoError(t, err)
		assert.Equal(t, int64(testBlockSize-10), pos)

		buf := make([]byte, 20)
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err)
		assert.Equal(t, want[testBlockSize-10:testBlockSize+10], buf)
	})

	t.Run("read tail from end", func(t *testing.T) {
		_, err := r.Seek(-100, io.SeekEnd)
		require.NoError(t, err)
		rest, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, want[len(want)-100:], rest)
	})

	t.Run("read at", func(t *testing.T) {
		buf := make([]byte, 64)
		n, err := r.ReadAt(buf, int64(len(want)-32))
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 32, n)
		assert.Equal(t, want[len(want)-32:], buf[:n])
	})

	t.Run("invalid seek", func(t *testing.T) {
		_, err := r.Seek(-1, io.SeekStart)
		assert.Error(t, err)
		_, err = r.Seek(0, 42)
		assert.Error(t, err)
	})

	t.Run("range", func(t *testing.T) {
		data, err := archive.ReadFileRange("/docs/big", 2*testBlockSize, 8)
		require.NoError(t, err)
		assert.Equal(t, want[2*testBlockSize:2*testBlockSize+8], data)

		data, err = archive.ReadFileRange("/docs/big", uint64(len(want)), 8)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("write to", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := archive.WriteFile(&buf, "/docs/big")
		require.NoError(t, err)
		assert.Equal(t, int64(len(want)), n)
		assert.Equal(t, want, buf.Bytes())
	})
}

func TestFileContentReaderConcurrentReadAt(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true})
	want := bigFileData()

	r, err := archive.OpenFile("/docs/big")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			buf := make([]byte, 100)
			for i := 0; i < 50; i++ {
				off := ((g*50 + i) * 97) % (len(want) - len(buf))
				if _, err := r.ReadAt(buf, int64(off)); err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(want[off:off+len(buf)], buf) {
					errs <- io.ErrUnexpectedEOF
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestGetFileMappings(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true})

	mappings, err := archive.GetFileMappings("/docs/big")
	require.NoError(t, err)
	require.Len(t, mappings, 4)

	assert.True(t, mappings[0].IsCompressed)
	assert.True(t, mappings[1].IsSparse)
	assert.Equal(t, uint32(0), mappings[1].PhysicalSize)
	assert.False(t, mappings[2].IsCompressed)
	assert.Equal(t, uint32(testBlockSize), mappings[2].PhysicalSize)
	assert.Equal(t, mappings[0].PhysicalOffset+uint64(mappings[0].PhysicalSize), mappings[2].PhysicalOffset)

	tail := mappings[3]
	assert.True(t, tail.IsFragment)
	assert.Equal(t, uint64(3*testBlockSize), tail.LogicalOffset)
	assert.Equal(t, uint64(1000), tail.LogicalSize)

	for i, m := range mappings[:3] {
		assert.Equal(t, uint64(i*testBlockSize), m.LogicalOffset)
		assert.Equal(t, uint64(testBlockSize), m.LogicalSize)
	}
}

func TestGetNodeByPath(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{})

	tests := []struct {
		path     string
		follow   bool
		wantPath string
		wantType types.InodeType
		check    func(t *testing.T, n *FileNode)
	}{
		{path: "/", wantPath: "/", wantType: types.InodeTypeDirectory, check: func(t *testing.T, n *FileNode) {
			assert.True(t, n.IsDirectory)
			assert.Equal(t, uint32(4), n.LinkCount)
		}},
		{path: "docs/readme", wantPath: "/docs/readme", wantType: types.InodeTypeFile, check: func(t *testing.T, n *FileNode) {
			assert.Equal(t, uint64(13), n.Size)
			assert.Equal(t, uint16(0o644), n.Mode&types.ModePermMask)
		}},
		{path: "/link", wantPath: "/link", wantType: types.InodeTypeSymlink, check: func(t *testing.T, n *FileNode) {
			assert.True(t, n.IsSymlink)
			assert.Equal(t, "docs/readme", n.LinkTarget)
		}},
		{path: "/link", follow: true, wantPath: "/docs/readme", wantType: types.InodeTypeFile},
		{path: "/null", wantPath: "/null", wantType: types.InodeTypeCharDevice, check: func(t *testing.T, n *FileNode) {
			assert.Equal(t, uint32(1), n.DeviceMajor)
			assert.Equal(t, uint32(3), n.DeviceMinor)
		}},
		{path: "/docs/../pipe", wantPath: "/pipe", wantType: types.InodeTypeFifo},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node, err := archive.GetNodeByPath(tt.path, tt.follow)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, node.Path)
			assert.Equal(t, tt.wantType, node.Type)
			if tt.check != nil {
				tt.check(t, node)
			}
		})
	}

	_, err := archive.GetNodeByPath("/docs/readme/x", false)
	assert.ErrorIs(t, err, types.ErrNotDirectory)
}

func TestListDirectory(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{})

	nodes, err := archive.ListDirectory("/docs")
	require.NoError(t, err)

	var paths []string
	for _, n := range nodes {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"/docs/readme", "/docs/big", "/docs/exact", "/docs/empty"}, paths)

	_, err = archive.ListDirectory("/docs/readme")
	assert.ErrorIs(t, err, types.ErrNotDirectory)
}

func TestWalkTree(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{})

	var paths []string
	err := archive.WalkTree("/docs", types.TreeFilterFlags(0), func(n *FileNode) error {
		paths = append(paths, n.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs", "/docs/readme", "/docs/big", "/docs/exact", "/docs/empty"}, paths)

	paths = nil
	err = archive.WalkTree("/", types.TreeNoRecurse|types.TreeNoDevices|types.TreeNoFifo, func(n *FileNode) error {
		paths = append(paths, n.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/docs", "/link", "/hollow"}, paths)
}

func TestFindFilesByName(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{})

	found, err := archive.FindFilesByName("e*", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "/docs/exact", found[0].Path)
	assert.Equal(t, "/docs/empty", found[1].Path)

	found, err = archive.FindFilesByName("*", 3)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = archive.FindFilesByName("[", 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestExtract(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true})
	dest := t.TempDir()

	stats, err := archive.Extract(context.Background(), "/", dest, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Directories)
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 1, stats.Symlinks)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, uint64(13+len(bigFileData())+testBlockSize), stats.Bytes)

	big, err := os.ReadFile(filepath.Join(dest, "docs", "big"))
	require.NoError(t, err)
	assert.Equal(t, bigFileData(), big)

	target, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	assert.Equal(t, "docs/readme", target)

	info, err := os.Stat(filepath.Join(dest, "hollow"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Lstat(filepath.Join(dest, "null"))
	assert.True(t, os.IsNotExist(err))

	t.Run("existing files", func(t *testing.T) {
		_, err := archive.Extract(context.Background(), "/", dest, ExtractOptions{})
		assert.Error(t, err)

		_, err = archive.Extract(context.Background(), "/", dest, ExtractOptions{Overwrite: true})
		assert.NoError(t, err)
	})

	t.Run("symlinked directory", func(t *testing.T) {
		out, outside := t.TempDir(), t.TempDir()
		require.NoError(t, os.Symlink(outside, filepath.Join(out, "docs")))

		_, err := archive.Extract(context.Background(), "/", out, ExtractOptions{})
		assert.Error(t, err)
		entries, err := os.ReadDir(outside)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = archive.Extract(context.Background(), "/", out, ExtractOptions{Overwrite: true})
		require.NoError(t, err)
		info, err := os.Lstat(filepath.Join(out, "docs"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		entries, err = os.ReadDir(outside)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("progress", func(t *testing.T) {
		var calls, last, total int
		_, err := archive.Extract(context.Background(), "/", t.TempDir(), ExtractOptions{
			Progress: func(done, n int) {
				calls++
				last, total = done, n
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 10, calls)
		assert.Equal(t, 10, last)
		assert.Equal(t, 10, total)
	})

	t.Run("single file", func(t *testing.T) {
		out := t.TempDir()
		stats, err := archive.Extract(context.Background(), "/docs/readme", out, ExtractOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Files)

		data, err := os.ReadFile(filepath.Join(out, "readme"))
		require.NoError(t, err)
		assert.Equal(t, "read me first", string(data))
	})

	t.Run("subdirectory", func(t *testing.T) {
		out := t.TempDir()
		_, err := archive.Extract(context.Background(), "/docs", out, ExtractOptions{})
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(out, "exact"))
		assert.NoError(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := archive.Extract(ctx, "/", t.TempDir(), ExtractOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCompressorOptions(t *testing.T) {
	opts := &types.CompressorOptions{Algorithm: types.CompressionZstd, Zstd: &types.ZstdOptionsT{CompressionLevel: 3}}
	_, archive := buildArchive(t, testutil.Options{Compressor: newZstd(t), Fragments: true, CompressorOptions: opts})

	assert.Equal(t, opts, archive.CompressorOptions())
	data, err := archive.ReadFile("/docs/big")
	require.NoError(t, err)
	assert.Equal(t, bigFileData(), data)
}

func TestArchiveLogging(t *testing.T) {
	img, err := testutil.Build(createTestTree(), testutil.Options{BlockSize: testBlockSize, Fragments: true})
	require.NoError(t, err)

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	archive, err := NewArchive(img.Handle(), ArchiveOptions{Logger: log})
	require.NoError(t, err)
	_, err = archive.ReadFile("/docs/readme")
	require.NoError(t, err)

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
		assert.Equal(t, archive.Fingerprint().String(), entry.Data["archive"])
	}
	assert.Contains(t, messages, "loaded id table")
	assert.Contains(t, messages, "loaded fragment table")
	assert.Contains(t, messages, "loaded fragment block")
}

func TestClose(t *testing.T) {
	_, archive := buildArchive(t, testutil.Options{})

	require.NoError(t, archive.Close())
	require.NoError(t, archive.Close())

	_, err := archive.Hierarchy(nil, 0)
	assert.ErrorIs(t, err, types.ErrSequenceViolation)
	_, err = archive.ReadFile("/docs/readme")
	assert.ErrorIs(t, err, types.ErrSequenceViolation)
}

func TestOpenArchive(t *testing.T) {
	img, err := testutil.Build(createTestTree(), testutil.Options{BlockSize: testBlockSize, Compressor: newZstd(t), Fragments: true})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "image.sqfs")
	require.NoError(t, os.WriteFile(path, img.Data, 0o644))

	log, _ := logtest.NewNullLogger()
	archive, err := OpenArchive(path, ArchiveOptions{Logger: log})
	require.NoError(t, err)
	defer archive.Close()

	data, err := archive.ReadFile("/docs/big")
	require.NoError(t, err)
	assert.Equal(t, bigFileData(), data)
	assert.Greater(t, archive.MetadataCacheStats().Misses, uint64(0))

	_, err = OpenArchive(filepath.Join(t.TempDir(), "missing.sqfs"), ArchiveOptions{Logger: log})
	assert.ErrorIs(t, err, types.ErrIo)
}

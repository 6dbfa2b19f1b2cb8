package services

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/compression"
	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/tables"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// fingerprintNamespace scopes the name based UUIDs derived from super blocks
var fingerprintNamespace = uuid.MustParse("6f0e4bb4-5a37-4d4c-8f57-3a1f8d1c5e2a")

// ArchiveOptions configure how an archive is opened
type ArchiveOptions struct {
	// Config is the image configuration. Nil selects device.DefaultConfig.
	Config *device.Config

	// DirReaderFlags are passed to the directory reader
	DirReaderFlags types.DirReaderFlags

	// Logger receives debug output. Nil selects the logrus standard logger.
	Logger logrus.FieldLogger
}

// Archive provides read access to a SquashFS archive. It owns the super block,
// the compressor, the lookup tables and the directory reader of one image.
type Archive struct {
	file   interfaces.FileReader
	closer io.Closer
	log    logrus.FieldLogger

	sb          *types.SuperBlock
	options     *types.CompressorOptions
	comp        *compression.Adapter
	meta        *metadata.Reader
	ids         *tables.IDTable
	fragments   *tables.FragmentTable
	exports     *tables.ExportTable
	dirs        *directory.Reader
	fingerprint uuid.UUID

	mu        sync.RWMutex
	fragCache *FragmentCache
	closed    bool
}

// OpenArchive opens the image at path read-only and reads its tables
func OpenArchive(path string, opts ArchiveOptions) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path cannot be empty")
	}
	if opts.Config == nil {
		opts.Config = device.DefaultConfig()
	}

	image, err := device.Open(path, types.FileOpenReadOnly, opts.Config, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive image: %w", err)
	}

	archive, err := NewArchive(image, opts)
	if err != nil {
		image.Close()
		return nil, err
	}
	archive.closer = image
	return archive, nil
}

// NewArchive reads the super block and tables of an archive from file. The
// caller keeps ownership of file.
func NewArchive(file interfaces.FileReader, opts ArchiveOptions) (*Archive, error) {
	if file == nil {
		return nil, fmt.Errorf("archive file cannot be nil")
	}
	if opts.Config == nil {
		opts.Config = device.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	sb, err := superblock.Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read super block: %w", err)
	}

	a := &Archive{
		file:        file,
		sb:          sb,
		fingerprint: uuid.NewSHA1(fingerprintNamespace, superblock.Encode(sb)),
	}
	a.log = log.WithFields(logrus.Fields{
		"archive":     a.fingerprint.String(),
		"compression": sb.Compression().String(),
	})

	if a.options, err = compression.ReadOptions(file, sb); err != nil {
		return nil, fmt.Errorf("failed to read compressor options: %w", err)
	}

	cfg := compression.ConfigFromSuperBlock(sb, types.CompressorFlags(opts.Config.CompressorFlags).With(types.CompFlagUncompress))
	cfg.Options = a.options
	if a.comp, err = compression.New(cfg); err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	cacheBlocks, cacheBytes := -1, int64(0)
	if opts.Config.CacheEnabled {
		cacheBytes = int64(opts.Config.CacheSize) * 1024 * 1024
		cacheBlocks = int(cacheBytes / types.MetadataBlockSize)
	}
	a.meta = metadata.NewReader(file, a.comp, cacheBlocks)
	a.fragCache = NewFragmentCache(cacheBytes)

	if a.ids, err = tables.ReadIDTable(file, a.meta, sb); err != nil {
		return nil, fmt.Errorf("failed to read id table: %w", err)
	}
	a.log.WithField("ids", a.ids.Size()).Debug("loaded id table")

	if a.fragments, err = tables.ReadFragmentTable(file, a.meta, sb); err != nil {
		return nil, fmt.Errorf("failed to read fragment table: %w", err)
	}
	a.log.WithField("fragments", a.fragments.Size()).Debug("loaded fragment table")

	if sb.HasExportTable() {
		if a.exports, err = tables.ReadExportTable(file, a.meta, sb); err != nil {
			return nil, fmt.Errorf("failed to read export table: %w", err)
		}
		a.log.WithField("inodes", a.exports.Size()).Debug("loaded export table")
	}

	if a.dirs, err = directory.NewReader(a.meta, sb, opts.DirReaderFlags); err != nil {
		return nil, fmt.Errorf("failed to create directory reader: %w", err)
	}
	if a.exports != nil {
		a.dirs.UseExportTable(a.exports)
	}

	return a, nil
}

// SuperBlock returns the decoded super block
func (a *Archive) SuperBlock() *types.SuperBlock { return a.sb }

// Compressor returns the decompress-only compressor of the archive
func (a *Archive) Compressor() interfaces.Compressor { return a.comp }

// CompressorOptions returns the options block, or nil when the archive has none
func (a *Archive) CompressorOptions() *types.CompressorOptions { return a.options }

// IDTable returns the uid/gid table
func (a *Archive) IDTable() *tables.IDTable { return a.ids }

// FragmentTable returns the fragment table, which is empty when the archive has none
func (a *Archive) FragmentTable() *tables.FragmentTable { return a.fragments }

// ExportTable returns the export table, or nil when the archive is not exportable
func (a *Archive) ExportTable() *tables.ExportTable { return a.exports }

// Directories returns the directory reader
func (a *Archive) Directories() *directory.Reader { return a.dirs }

// Fingerprint returns a name based UUID derived from the super block bytes
func (a *Archive) Fingerprint() uuid.UUID { return a.fingerprint }

// MetadataCacheStats returns the metadata block cache counters
func (a *Archive) MetadataCacheStats() interfaces.BlockCacheStats { return a.meta.Stats() }

// FragmentCacheStats returns the fragment block cache counters
func (a *Archive) FragmentCacheStats() FragmentCacheStats { return a.fragCache.Stats() }

// Info summarizes the archive
func (a *Archive) Info() *ArchiveInfo {
	return &ArchiveInfo{
		Fingerprint:       a.fingerprint,
		VersionMajor:      a.sb.VersionMajor,
		VersionMinor:      a.sb.VersionMinor,
		Compression:       a.sb.Compression(),
		CompressorOptions: a.options,
		BlockSize:         a.sb.BlockSize,
		InodeCount:        a.sb.InodeCount,
		FragmentCount:     a.sb.FragmentEntryCount,
		IDCount:           a.ids.Size(),
		BytesUsed:         a.sb.BytesUsed,
		ModificationTime:  time.Unix(int64(a.sb.ModificationTime), 0).UTC(),
		Flags:             a.sb.Flags.Names(),
		Exportable:        a.exports != nil,
		Tables: []TableLocation{
			{Name: "inode", Start: a.sb.InodeTableStart},
			{Name: "directory", Start: a.sb.DirectoryTableStart},
			{Name: "fragment", Start: a.sb.FragmentTableStart},
			{Name: "export", Start: a.sb.ExportTableStart},
			{Name: "id", Start: a.sb.IDTableStart},
			{Name: "xattr", Start: a.sb.XattrIDTableStart},
		},
	}
}

// Hierarchy reads the directory tree below startPath, or below the root when
// startPath is nil
func (a *Archive) Hierarchy(startPath *string, flags types.TreeFilterFlags) (*directory.DirectoryTree, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	start := "/"
	if startPath != nil {
		start = *startPath
	}
	a.log.WithFields(logrus.Fields{"path": start, "flags": flags.String()}).Debug("reading directory hierarchy")

	tree, err := a.dirs.GetFullHierarchy(a.ids, startPath, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy of %s: %w", start, err)
	}
	return tree, nil
}

// Close releases the image opened by OpenArchive. Archives created with
// NewArchive leave the file to the caller.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.fragCache.Clear()
	a.meta.ClearCache()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) checkOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return types.Errorf("use archive", types.KindSequenceViolation, "archive is closed")
	}
	return nil
}

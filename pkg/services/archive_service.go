package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	isvc "github.com/deploymenttheory/go-squashfs/internal/services"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// archiveService implements the ArchiveService interface
type archiveService struct {
	config *device.Config
	log    logrus.FieldLogger

	mu           sync.Mutex
	openArchives map[string]*archiveHandle
}

// archiveHandle represents an open archive
type archiveHandle struct {
	path     string
	archive  *isvc.Archive
	openedAt time.Time
}

// NewArchiveService creates a new archive service. A nil config selects
// device.DefaultConfig and a nil logger the logrus standard logger.
func NewArchiveService(config *device.Config, log logrus.FieldLogger) ArchiveService {
	return newArchiveService(config, log)
}

func newArchiveService(config *device.Config, log logrus.FieldLogger) *archiveService {
	if config == nil {
		config = device.DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &archiveService{
		config:       config,
		log:          log,
		openArchives: make(map[string]*archiveHandle),
	}
}

// OpenArchive opens an archive at the specified path
func (as *archiveService) OpenArchive(ctx context.Context, path string) (ArchiveInfo, error) {
	handle, err := as.handle(ctx, path)
	if err != nil {
		return ArchiveInfo{}, err
	}
	return buildArchiveInfo(handle), nil
}

// ListFragments returns every fragment table entry in index order
func (as *archiveService) ListFragments(ctx context.Context, path string) ([]FragmentInfo, error) {
	handle, err := as.handle(ctx, path)
	if err != nil {
		return nil, err
	}

	it := handle.archive.FragmentTable().Fragments()
	fragments := make([]FragmentInfo, 0, it.Len())
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := it.Value()
		fragments = append(fragments, FragmentInfo{
			Index:      it.Index(),
			Offset:     f.StartOffset,
			Size:       f.OnDiskSize(),
			Compressed: f.Compressed(),
		})
	}
	return fragments, nil
}

// ListOpenArchives returns the paths of all open archives in sorted order
func (as *archiveService) ListOpenArchives() []string {
	as.mu.Lock()
	defer as.mu.Unlock()

	paths := make([]string, 0, len(as.openArchives))
	for path := range as.openArchives {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// CloseArchive closes the archive at path if it is open
func (as *archiveService) CloseArchive(path string) error {
	as.mu.Lock()
	handle, exists := as.openArchives[path]
	delete(as.openArchives, path)
	as.mu.Unlock()

	if !exists {
		return nil
	}
	if err := handle.archive.Close(); err != nil {
		return fmt.Errorf("failed to close archive %s: %w", path, err)
	}
	return nil
}

// Close closes all open archives and releases resources
func (as *archiveService) Close() error {
	as.mu.Lock()
	handles := as.openArchives
	as.openArchives = make(map[string]*archiveHandle)
	as.mu.Unlock()

	var firstErr error
	for path, handle := range handles {
		if err := handle.archive.Close(); err != nil {
			as.log.WithError(err).WithField("path", path).Warn("failed to close archive")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// handle returns the open archive at path, opening it on first use
func (as *archiveService) handle(ctx context.Context, path string) (*archiveHandle, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if handle, exists := as.openArchives[path]; exists {
		return handle, nil
	}

	archive, err := isvc.OpenArchive(path, isvc.ArchiveOptions{Config: as.config, Logger: as.log})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	handle := &archiveHandle{
		path:     path,
		archive:  archive,
		openedAt: time.Now(),
	}
	as.openArchives[path] = handle
	return handle, nil
}

// buildArchiveInfo creates an ArchiveInfo from an archive handle
func buildArchiveInfo(handle *archiveHandle) ArchiveInfo {
	info := handle.archive.Info()

	tables := make([]TableInfo, 0, len(info.Tables))
	for _, t := range info.Tables {
		tables = append(tables, TableInfo{Name: t.Name, Start: t.Start, Present: t.Present()})
	}

	return ArchiveInfo{
		Path:              handle.path,
		Fingerprint:       info.Fingerprint.String(),
		VersionMajor:      info.VersionMajor,
		VersionMinor:      info.VersionMinor,
		Compression:       info.Compression.String(),
		CompressorOptions: optionFields(info.CompressorOptions),
		BlockSize:         info.BlockSize,
		InodeCount:        info.InodeCount,
		FragmentCount:     info.FragmentCount,
		IDCount:           info.IDCount,
		BytesUsed:         info.BytesUsed,
		Modified:          info.ModificationTime,
		Flags:             info.Flags,
		Exportable:        info.Exportable,
		Tables:            tables,
		OpenedAt:          handle.openedAt,
	}
}

// optionFields flattens a compressor options block into named values
func optionFields(opts *types.CompressorOptions) map[string]uint32 {
	if opts == nil {
		return nil
	}

	fields := make(map[string]uint32)
	switch {
	case opts.Gzip != nil:
		fields["compression_level"] = opts.Gzip.CompressionLevel
		fields["window_size"] = uint32(opts.Gzip.WindowSize)
		fields["strategies"] = uint32(opts.Gzip.Strategies)
	case opts.Xz != nil:
		fields["dictionary_size"] = opts.Xz.DictionarySize
		fields["filters"] = opts.Xz.Filters
	case opts.Lz4 != nil:
		fields["version"] = opts.Lz4.Version
		fields["flags"] = opts.Lz4.Flags
	case opts.Zstd != nil:
		fields["compression_level"] = opts.Zstd.CompressionLevel
	case opts.Lzo != nil:
		fields["algorithm"] = opts.Lzo.Algorithm
		fields["compression_level"] = opts.Lzo.CompressionLevel
	}
	return fields
}

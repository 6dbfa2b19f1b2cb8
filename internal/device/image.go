package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const (
	pageSize = types.DeviceBlockSize

	// scanWindow bounds the region searched for an embedded archive
	scanWindow = 2 * 1024 * 1024
)

// ImageFile provides access to an archive stored in a file, possibly embedded
// at an offset inside a larger image
type ImageFile struct {
	file     *os.File
	size     int64
	offset   int64
	readOnly bool

	pages      map[int64][]byte
	cacheMutex sync.RWMutex
	maxPages   int
	stats      *ImageStatistics
}

// ImageStatistics tracks access statistics of an ImageFile
type ImageStatistics struct {
	OffsetDetectionTime time.Duration
	OffsetMethod        string
	BytesRead           int64
	CacheHits           int64
	CacheMisses         int64
	mu                  sync.Mutex
}

var _ interfaces.FileHandle = (*ImageFile)(nil)

// Open opens an archive image. With FileOpenReadOnly the file is opened for
// reading only; otherwise it is opened read-write and created if missing, and
// FileOpenOverwrite truncates it.
func Open(path string, flags types.FileOpenFlags, config *Config, log logrus.FieldLogger) (*ImageFile, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	mode := os.O_RDONLY
	if !flags.Has(types.FileOpenReadOnly) {
		mode = os.O_RDWR | os.O_CREATE
		if flags.Has(types.FileOpenOverwrite) {
			mode |= os.O_TRUNC
		}
	}

	file, err := os.OpenFile(path, mode, 0o644)
	if err != nil {
		return nil, types.WrapError("open archive image", types.KindIo, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, types.WrapError("stat archive image", types.KindIo, err)
	}

	img := &ImageFile{
		file:     file,
		size:     stat.Size(),
		readOnly: flags.Has(types.FileOpenReadOnly),
		stats:    &ImageStatistics{OffsetMethod: "unknown"},
	}
	if config.CacheEnabled && !flags.Has(types.FileOpenNoBuffer) && img.readOnly {
		img.pages = make(map[int64][]byte)
		img.maxPages = config.CacheSize * 1024 * 1024 / pageSize
	}

	switch {
	case config.AutoDetectOffset && img.size > 0:
		start := time.Now()
		offset, method, err := img.detectOffset()
		img.stats.OffsetDetectionTime = time.Since(start)
		if err != nil {
			img.offset = config.DefaultOffset
			img.stats.OffsetMethod = "fallback"
			log.WithError(err).WithField("offset", img.offset).Debug("archive offset not detected, using default")
		} else {
			img.offset = offset
			img.stats.OffsetMethod = method
			log.WithFields(logrus.Fields{
				"offset": offset,
				"method": method,
				"took":   img.stats.OffsetDetectionTime,
			}).Debug("archive offset detected")
		}
	default:
		img.offset = config.DefaultOffset
		img.stats.OffsetMethod = "configured"
	}

	if img.offset > img.size && img.readOnly {
		file.Close()
		return nil, types.Errorf("open archive image", types.KindOutOfBounds, "offset %d past end of %d byte image", img.offset, img.size)
	}

	return img, nil
}

// detectOffset looks for a super block at common alignments, then scans the
// start of the image at 512 byte steps
func (d *ImageFile) detectOffset() (int64, string, error) {
	buf := make([]byte, scanWindow)
	n, err := d.file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, "", fmt.Errorf("failed to read image: %w", err)
	}
	buf = buf[:n]

	for _, offset := range []int64{0, 512, 4096, 32768, 65536, 1048576} {
		if looksLikeSuperBlock(buf, offset) {
			return offset, "direct", nil
		}
	}
	for offset := int64(0); offset+types.SuperBlockSize <= int64(len(buf)); offset += 512 {
		if looksLikeSuperBlock(buf, offset) {
			return offset, "aligned-scan", nil
		}
	}
	return 0, "", fmt.Errorf("no squashfs super block found in first %d bytes", len(buf))
}

func looksLikeSuperBlock(buf []byte, offset int64) bool {
	if offset < 0 || offset+types.SuperBlockSize > int64(len(buf)) {
		return false
	}
	sb := buf[offset : offset+types.SuperBlockSize]
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], types.SuperBlockMagic)
	return bytes.Equal(sb[0:4], magic[:]) &&
		binary.LittleEndian.Uint16(sb[28:30]) == types.SupportedVersionMajor
}

// ReadAt implements io.ReaderAt for the archive inside the image
func (d *ImageFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if d.pages == nil {
		n, err := d.file.ReadAt(p, d.offset+off)
		d.stats.record(n, false)
		return n, err
	}

	total := 0
	for total < len(p) {
		pos := off + int64(total)
		page, err := d.page(pos / pageSize)
		start := int(pos % pageSize)
		if start < len(page) {
			total += copy(p[total:], page[start:])
		}
		if err != nil {
			return total, err
		}
		if len(page) < pageSize && total < len(p) {
			return total, io.EOF
		}
	}
	return total, nil
}

func (d *ImageFile) page(index int64) ([]byte, error) {
	d.cacheMutex.RLock()
	cached, ok := d.pages[index]
	d.cacheMutex.RUnlock()
	if ok {
		d.stats.record(0, true)
		return cached, nil
	}

	buf := make([]byte, pageSize)
	n, err := d.file.ReadAt(buf, d.offset+index*pageSize)
	d.stats.record(n, false)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf[:n], err
	}
	buf = buf[:n]

	d.cacheMutex.Lock()
	if len(d.pages) < d.maxPages {
		d.pages[index] = buf
	}
	d.cacheMutex.Unlock()
	return buf, nil
}

func (s *ImageStatistics) record(n int, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.CacheHits++
		return
	}
	s.CacheMisses++
	s.BytesRead += int64(n)
}

// WriteAt implements io.WriterAt for the archive inside the image
func (d *ImageFile) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, fmt.Errorf("image opened read-only")
	}
	n, err := d.file.WriteAt(p, d.offset+off)
	if end := off + int64(n); end > d.Size() {
		d.size = d.offset + end
	}
	return n, err
}

// Truncate changes the size of the archive inside the image
func (d *ImageFile) Truncate(size int64) error {
	if d.readOnly {
		return fmt.Errorf("image opened read-only")
	}
	if err := d.file.Truncate(d.offset + size); err != nil {
		return err
	}
	d.size = d.offset + size
	return nil
}

// IsReadOnly reports whether writes are rejected
func (d *ImageFile) IsReadOnly() bool {
	return d.readOnly
}

// Size returns the size of the archive region
func (d *ImageFile) Size() int64 {
	return d.size - d.offset
}

// Offset returns the position of the archive inside the image
func (d *ImageFile) Offset() int64 {
	return d.offset
}

// Close closes the image file
func (d *ImageFile) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Stats returns a snapshot of the access statistics
func (d *ImageFile) Stats() ImageStatistics {
	d.stats.mu.Lock()
	defer d.stats.mu.Unlock()
	return ImageStatistics{
		OffsetDetectionTime: d.stats.OffsetDetectionTime,
		OffsetMethod:        d.stats.OffsetMethod,
		BytesRead:           d.stats.BytesRead,
		CacheHits:           d.stats.CacheHits,
		CacheMisses:         d.stats.CacheMisses,
	}
}

// CacheHitRate returns the page cache hit rate as a percentage
func (d *ImageFile) CacheHitRate() float64 {
	s := d.Stats()
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0.0
	}
	return float64(s.CacheHits) / float64(total) * 100.0
}

// ClearCache drops every cached page
func (d *ImageFile) ClearCache() {
	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()
	if d.pages != nil {
		d.pages = make(map[int64][]byte)
	}
}

// Package metadata reads and writes the 8 KiB metadata blocks that hold the
// inode table, the directory table and the lookup tables of an archive.
package metadata

import (
	"encoding/binary"
	"sync"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const (
	// HeaderSize is the size of the header in front of every metadata block
	HeaderSize = 2

	// headerUncompressed is set in the header of a block stored raw
	headerUncompressed uint16 = 0x8000

	headerSizeMask uint16 = 0x7FFF
)

type cachedBlock struct {
	data []byte
	next uint64
}

// Reader reads metadata blocks and caches their decoded contents
type Reader struct {
	file interfaces.FileReader
	comp interfaces.Compressor

	cache      map[uint64]cachedBlock
	cacheMutex sync.RWMutex
	maxBlocks  int
	hits       uint64
	misses     uint64
}

var _ interfaces.MetadataBlockReader = (*Reader)(nil)

// NewReader creates a metadata block reader. maxBlocks bounds the cache;
// zero leaves it unbounded and a negative value disables it.
func NewReader(file interfaces.FileReader, comp interfaces.Compressor, maxBlocks int) *Reader {
	r := &Reader{
		file:      file,
		comp:      comp,
		maxBlocks: maxBlocks,
	}
	if maxBlocks >= 0 {
		r.cache = make(map[uint64]cachedBlock)
	}
	return r
}

// ReadBlock returns the decoded contents of the metadata block at offset
// and the offset of the block that follows it
func (r *Reader) ReadBlock(offset uint64) ([]byte, uint64, error) {
	if r.cache != nil {
		r.cacheMutex.RLock()
		cached, ok := r.cache[offset]
		r.cacheMutex.RUnlock()
		if ok {
			r.cacheMutex.Lock()
			r.hits++
			r.cacheMutex.Unlock()
			return cached.data, cached.next, nil
		}
	}

	data, next, err := r.readBlock(offset)
	if err != nil {
		return nil, 0, err
	}

	if r.cache != nil {
		r.cacheMutex.Lock()
		r.misses++
		if r.maxBlocks > 0 && len(r.cache) >= r.maxBlocks {
			for key := range r.cache {
				delete(r.cache, key)
				break
			}
		}
		r.cache[offset] = cachedBlock{data: data, next: next}
		r.cacheMutex.Unlock()
	}
	return data, next, nil
}

func (r *Reader) readBlock(offset uint64) ([]byte, uint64, error) {
	const op = "read metadata block"

	header, err := helpers.ReadExact(r.file, offset, HeaderSize, op)
	if err != nil {
		return nil, 0, types.WrapError(op, types.KindCorrupted, err)
	}
	h := binary.LittleEndian.Uint16(header)
	size := int(h & headerSizeMask)
	compressed := h&headerUncompressed == 0
	if size == 0 || size > types.MetadataBlockSize {
		return nil, 0, types.Errorf(op, types.KindCorrupted, "metadata block at %d has size %d", offset, size)
	}

	payload, err := helpers.ReadExact(r.file, offset+HeaderSize, size, op)
	if err != nil {
		return nil, 0, types.WrapError(op, types.KindCorrupted, err)
	}

	data := payload
	if compressed {
		if r.comp == nil {
			return nil, 0, types.Errorf(op, types.KindSequenceViolation, "compressed metadata block without a compressor")
		}
		data, err = r.comp.Decompress(payload)
		if err != nil {
			return nil, 0, err
		}
		if len(data) > types.MetadataBlockSize {
			return nil, 0, types.Errorf(op, types.KindCorrupted, "metadata block at %d decompresses to %d bytes", offset, len(data))
		}
	}

	return data, offset + HeaderSize + uint64(size), nil
}

// Stats returns cache statistics
func (r *Reader) Stats() interfaces.BlockCacheStats {
	r.cacheMutex.RLock()
	defer r.cacheMutex.RUnlock()
	return interfaces.BlockCacheStats{
		Hits:          r.hits,
		Misses:        r.misses,
		BlocksInCache: len(r.cache),
		MaxBlocks:     max(r.maxBlocks, 0),
	}
}

// ClearCache drops every cached block
func (r *Reader) ClearCache() {
	r.cacheMutex.Lock()
	defer r.cacheMutex.Unlock()
	if r.cache != nil {
		r.cache = make(map[uint64]cachedBlock)
	}
}

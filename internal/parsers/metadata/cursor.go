package metadata

import (
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Cursor reads a byte stream that continues across consecutive metadata blocks.
// Positions are expressed the way inode references and directory headers store
// them: a block offset relative to the table start and an offset inside the block.
type Cursor struct {
	reader interfaces.MetadataBlockReader
	base   uint64

	block  uint64
	offset int
	data   []byte
	next   uint64
	loaded bool
}

// NewCursor creates a cursor positioned at offset inside the block that starts
// block bytes after the table start base
func NewCursor(reader interfaces.MetadataBlockReader, base, block uint64, offset uint16) *Cursor {
	return &Cursor{
		reader: reader,
		base:   base,
		block:  block,
		offset: int(offset),
	}
}

func (c *Cursor) load() error {
	if c.loaded {
		return nil
	}
	data, next, err := c.reader.ReadBlock(c.base + c.block)
	if err != nil {
		return err
	}
	if c.offset > len(data) {
		return types.Errorf("position metadata cursor", types.KindCorrupted,
			"offset %d past end of %d byte block at %d", c.offset, len(data), c.base+c.block)
	}
	c.data = data
	c.next = next
	c.loaded = true
	return nil
}

// ReadBytes returns the next n bytes, following the chain of blocks as needed
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, types.Errorf("read metadata", types.KindInvalidArgument, "negative length %d", n)
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	if len(c.data)-c.offset >= n {
		out := c.data[c.offset : c.offset+n]
		c.offset += n
		return out, nil
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		if err := c.load(); err != nil {
			return nil, err
		}
		if c.offset == len(c.data) {
			c.advance()
			continue
		}
		take := min(n-len(out), len(c.data)-c.offset)
		out = append(out, c.data[c.offset:c.offset+take]...)
		c.offset += take
	}
	return out, nil
}

// Skip discards n bytes
func (c *Cursor) Skip(n int) error {
	_, err := c.ReadBytes(n)
	return err
}

func (c *Cursor) advance() {
	c.block = c.next - c.base
	c.offset = 0
	c.loaded = false
}

// Position returns the block and in-block offset of the next byte. A cursor at
// the end of a loaded block reports the start of the following block.
func (c *Cursor) Position() (uint64, uint16) {
	if c.loaded && c.offset == len(c.data) && len(c.data) == types.MetadataBlockSize {
		return c.next - c.base, 0
	}
	return c.block, uint16(c.offset)
}

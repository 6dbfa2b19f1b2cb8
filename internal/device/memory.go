package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
)

// MemoryHandle is a FileHandle over an in-memory buffer
type MemoryHandle struct {
	mu       sync.RWMutex
	data     []byte
	readOnly bool
	closed   bool
}

var _ interfaces.FileHandle = (*MemoryHandle)(nil)

// NewMemoryHandle creates a writable handle that owns data
func NewMemoryHandle(data []byte) *MemoryHandle {
	return &MemoryHandle{data: data}
}

// NewReadOnlyMemoryHandle creates a handle that rejects writes
func NewReadOnlyMemoryHandle(data []byte) *MemoryHandle {
	return &MemoryHandle{data: data, readOnly: true}
}

func (m *MemoryHandle) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, fmt.Errorf("read from closed handle")
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemoryHandle) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("write to closed handle")
	}
	if m.readOnly {
		return 0, fmt.Errorf("handle is read-only")
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if end := off + int64(len(p)); end > int64(len(m.data)) {
		m.grow(end)
	}
	return copy(m.data[off:], p), nil
}

func (m *MemoryHandle) grow(size int64) {
	if size <= int64(cap(m.data)) {
		m.data = m.data[:size]
		return
	}
	data := make([]byte, size, size*2)
	copy(data, m.data)
	m.data = data
}

func (m *MemoryHandle) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return fmt.Errorf("handle is read-only")
	}
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	if size > int64(len(m.data)) {
		m.grow(size)
		return nil
	}
	clear(m.data[size:])
	m.data = m.data[:size]
	return nil
}

func (m *MemoryHandle) IsReadOnly() bool {
	return m.readOnly
}

func (m *MemoryHandle) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Bytes returns the current contents
func (m *MemoryHandle) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

func (m *MemoryHandle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

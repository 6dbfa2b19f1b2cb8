package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/testutil"
)

func TestFragmentCache(t *testing.T) {
	cache := NewFragmentCache(10)

	_, ok := cache.Get(1)
	assert.False(t, ok)

	cache.Put(1, []byte("aaaa"))
	cache.Put(2, []byte("bbbb"))
	data, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("aaaa"), data)

	// 2 is now the least recently used
	cache.Put(3, []byte("cccc"))
	_, ok = cache.Get(2)
	assert.False(t, ok)
	_, ok = cache.Get(1)
	assert.True(t, ok)

	cache.Put(4, bytes.Repeat([]byte("d"), 11))
	_, ok = cache.Get(4)
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, FragmentCacheStats{Hits: 2, Misses: 3, Evictions: 1, Blocks: 2, Bytes: 8, MaxBytes: 10}, stats)

	cache.Clear()
	stats = cache.Stats()
	assert.Equal(t, 0, stats.Blocks)
	assert.Equal(t, int64(0), stats.Bytes)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestFragmentCacheDisabled(t *testing.T) {
	cache := NewFragmentCache(0)
	cache.Put(1, []byte("a"))
	_, ok := cache.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().Blocks)
}

func TestArchiveFragmentCache(t *testing.T) {
	img, err := testutil.Build(createTestTree(), testutil.Options{BlockSize: testBlockSize, Fragments: true})
	require.NoError(t, err)

	tests := []struct {
		name      string
		config    *device.Config
		wantHits  bool
		wantBlock bool
	}{
		{name: "enabled", config: device.DefaultConfig(), wantHits: true, wantBlock: true},
		{name: "disabled", config: &device.Config{CacheEnabled: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, err := NewArchive(img.Handle(), ArchiveOptions{Config: tt.config})
			require.NoError(t, err)
			defer archive.Close()

			for i := 0; i < 2; i++ {
				_, err := archive.ReadFile("/docs/readme")
				require.NoError(t, err)
			}

			stats := archive.FragmentCacheStats()
			assert.Equal(t, tt.wantHits, stats.Hits > 0)
			assert.Equal(t, tt.wantBlock, stats.Blocks > 0)
		})
	}
}

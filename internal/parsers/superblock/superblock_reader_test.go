package superblock

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// createTestSuperBlockData creates raw super block bytes
func createTestSuperBlockData(magic uint32, blockSize uint32, blockLog uint16, major, minor uint16) []byte {
	endian := binary.LittleEndian
	data := make([]byte, types.SuperBlockSize)

	endian.PutUint32(data[0:4], magic)
	endian.PutUint32(data[4:8], 42)          // inode count
	endian.PutUint32(data[8:12], 1700000000) // modification time
	endian.PutUint32(data[12:16], blockSize)
	endian.PutUint32(data[16:20], 3) // fragment count
	endian.PutUint16(data[20:22], uint16(types.CompressionZstd))
	endian.PutUint16(data[22:24], blockLog)
	endian.PutUint16(data[24:26], uint16(types.SuperFlagExportable|types.SuperFlagNoXattrs|0x8000))
	endian.PutUint16(data[26:28], 2) // id count
	endian.PutUint16(data[28:30], major)
	endian.PutUint16(data[30:32], minor)
	endian.PutUint64(data[32:40], 0x0000000000200060) // root inode ref
	endian.PutUint64(data[40:48], 8192)               // bytes used
	endian.PutUint64(data[48:56], 8000)               // id table
	endian.PutUint64(data[56:64], types.TableAbsent)  // xattr table
	endian.PutUint64(data[64:72], 96)                 // inode table
	endian.PutUint64(data[72:80], 4000)               // directory table
	endian.PutUint64(data[80:88], 7000)               // fragment table
	endian.PutUint64(data[88:96], 7500)               // export table

	return data
}

func TestDecode(t *testing.T) {
	data := createTestSuperBlockData(types.SuperBlockMagic, 131072, 17, 4, 0)

	sb, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, types.SuperBlockMagic, sb.Magic)
	assert.Equal(t, uint32(42), sb.InodeCount)
	assert.Equal(t, uint32(1700000000), sb.ModificationTime)
	assert.Equal(t, uint32(131072), sb.BlockSize)
	assert.Equal(t, uint32(3), sb.FragmentEntryCount)
	assert.Equal(t, types.CompressionZstd, sb.Compression())
	assert.Equal(t, uint16(17), sb.BlockLog)
	assert.True(t, sb.Flags.Has(types.SuperFlagExportable))
	assert.Equal(t, types.SuperBlockFlags(0x8000), sb.Flags.Unknown())
	assert.Equal(t, uint16(2), sb.IDCount)
	assert.Equal(t, uint64(0x200060), sb.RootInodeRef)
	assert.Equal(t, uint64(8000), sb.IDTableStart)
	assert.Equal(t, types.TableAbsent, sb.XattrIDTableStart)
	assert.Equal(t, uint64(96), sb.InodeTableStart)
	assert.Equal(t, uint64(4000), sb.DirectoryTableStart)
	assert.Equal(t, uint64(7000), sb.FragmentTableStart)
	assert.Equal(t, uint64(7500), sb.ExportTableStart)
	assert.True(t, sb.HasExportTable())
	assert.True(t, sb.HasFragmentTable())
	assert.False(t, sb.HasXattrTable())
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		kind      types.ErrorKind
		corrupted bool
	}{
		{
			name:      "magic mismatch",
			data:      createTestSuperBlockData(0x12345678, 131072, 17, 4, 0),
			kind:      types.KindSuperMagicMismatch,
			corrupted: true,
		},
		{
			name:      "version 3.1",
			data:      createTestSuperBlockData(types.SuperBlockMagic, 131072, 17, 3, 1),
			kind:      types.KindSuperVersionMismatch,
			corrupted: true,
		},
		{
			name:      "block size not a power of two",
			data:      createTestSuperBlockData(types.SuperBlockMagic, 131000, 17, 4, 0),
			kind:      types.KindSuperBlockSizeInvalid,
			corrupted: true,
		},
		{
			name:      "block size too small",
			data:      createTestSuperBlockData(types.SuperBlockMagic, 2048, 11, 4, 0),
			kind:      types.KindSuperBlockSizeInvalid,
			corrupted: true,
		},
		{
			name:      "block log mismatch",
			data:      createTestSuperBlockData(types.SuperBlockMagic, 131072, 16, 4, 0),
			kind:      types.KindSuperBlockSizeInvalid,
			corrupted: true,
		},
		{
			name:      "truncated",
			data:      make([]byte, 40),
			kind:      types.KindCorrupted,
			corrupted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, err := Decode(tt.data)
			assert.Nil(t, sb)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "expected %v, got %v", tt.kind, err)
			assert.Equal(t, tt.corrupted, errors.Is(err, types.ErrCorrupted))
		})
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	data := createTestSuperBlockData(types.SuperBlockMagic, 131072, 17, 4, 0)
	copy(data[0:4], []byte("nope"))

	sb, err := Read(device.NewReadOnlyMemoryHandle(data))
	assert.Nil(t, sb)
	assert.ErrorIs(t, err, types.ErrCorrupted)
}

func TestReadShortFile(t *testing.T) {
	sb, err := Read(device.NewReadOnlyMemoryHandle(make([]byte, 10)))
	assert.Nil(t, sb)
	assert.ErrorIs(t, err, types.ErrIo)
}

func TestReadWriteRoundTrip(t *testing.T) {
	data := createTestSuperBlockData(types.SuperBlockMagic, 65536, 16, 4, 0)
	file := device.NewMemoryHandle(append([]byte(nil), data...))

	first, err := Read(file)
	require.NoError(t, err)

	require.NoError(t, Write(first, file))
	assert.Equal(t, data, file.Bytes())

	second, err := Read(file)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteReadOnlyHandle(t *testing.T) {
	sb, err := New(types.DefaultBlockSize, types.CompressionGZip, 0)
	require.NoError(t, err)

	err = Write(sb, device.NewReadOnlyMemoryHandle(make([]byte, types.SuperBlockSize)))
	assert.ErrorIs(t, err, types.ErrIo)
}

func TestNew(t *testing.T) {
	sb, err := New(1<<20, types.CompressionXz, 1234)
	require.NoError(t, err)

	assert.Equal(t, uint16(20), sb.BlockLog)
	assert.Equal(t, types.CompressionXz, sb.Compression())
	assert.Equal(t, types.TableAbsent, sb.FragmentTableStart)
	assert.Equal(t, types.TableAbsent, sb.ExportTableStart)
	assert.NoError(t, Validate(sb))

	decoded, err := Decode(Encode(sb))
	require.NoError(t, err)
	assert.Equal(t, sb, decoded)

	_, err = New(3000, types.CompressionXz, 0)
	assert.ErrorIs(t, err, types.ErrSuperBlockSizeInvalid)

	_, err = New(types.DefaultBlockSize, 9, 0)
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestSuperBlockFlagsString(t *testing.T) {
	flags := types.SuperFlagNoFragments.With(types.SuperFlagDuplicates)
	assert.Equal(t, "no-fragments|duplicates", flags.String())
	assert.Equal(t, "none", types.SuperBlockFlags(0).String())
}

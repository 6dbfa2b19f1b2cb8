package testutil

import (
	"bytes"

	"github.com/deploymenttheory/go-squashfs/internal/compression"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// SampleModificationTime is the archive and inode time of SampleImage
const SampleModificationTime = 1700000000

// SampleTree returns a small tree with files of several sizes, a symlink, a
// device and an empty directory
func SampleTree() *Node {
	return Dir("",
		Dir("docs",
			File("readme.txt", []byte("read me first\n")),
			File("report.pdf", bytes.Repeat([]byte("P"), 5000)),
			File("notes.md", []byte("secret plans\n")),
		),
		Dir("bin",
			File("tool", bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 2250)),
		),
		Symlink("link", "docs/readme.txt"),
		Device("null", false, 1, 3),
		Dir("empty"),
	)
}

// SampleImage writes SampleTree as a gzip compressed archive with 4 KiB
// blocks, fragments and an export table to dir and returns its path
func SampleImage(dir string) (string, error) {
	comp, err := compression.New(compression.Config{Algorithm: types.CompressionGZip, BlockSize: 4096})
	if err != nil {
		return "", err
	}
	img, err := Build(SampleTree(), Options{
		BlockSize:        4096,
		Compressor:       comp,
		Fragments:        true,
		Export:           true,
		ModificationTime: SampleModificationTime,
	})
	if err != nil {
		return "", err
	}
	return img.Save(dir, "sample.sqfs")
}

package inodes

import (
	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Encode serializes an inode into its on-disk form
func Encode(inode Inode) ([]byte, error) {
	const op = "encode inode"

	b := inode.Base()
	if !b.Tag.Valid() {
		return nil, &types.UnknownInodeTypeError{Tag: uint16(b.Tag)}
	}

	w := helpers.NewFieldWriter(64)
	w.U16(uint16(b.Tag)).U16(b.Mode).U16(b.UIDIndex).U16(b.GIDIndex).U32(b.ModificationTime).U32(b.InodeNumber)

	switch v := inode.(type) {
	case *DirectoryInode:
		w.U32(v.Body.StartBlock).U32(v.Body.LinkCount).U16(v.Body.FileSize).U16(v.Body.Offset).U32(v.Body.ParentInode)
	case *ExtendedDirectoryInode:
		w.U32(v.Body.LinkCount).U32(v.Body.FileSize).U32(v.Body.StartBlock).U32(v.Body.ParentInode)
		w.U16(uint16(len(v.Index))).U16(v.Body.Offset).U32(v.Body.XattrIndex)
		for _, entry := range v.Index {
			if len(entry.Name) == 0 || len(entry.Name) > types.MaxNameLength {
				return nil, types.Errorf(op, types.KindInvalidArgument, "index name %q", entry.Name)
			}
			w.U32(entry.Index).U32(entry.Start).U32(uint32(len(entry.Name) - 1)).Bytes([]byte(entry.Name))
		}
	case *FileInode:
		w.U32(v.Body.BlocksStart).U32(v.Body.FragmentIndex).U32(v.Body.FragmentOffset).U32(v.Body.FileSize)
		writeWords(w, v.Extra)
	case *ExtendedFileInode:
		w.U64(v.Body.BlocksStart).U64(v.Body.FileSize).U64(v.Body.Sparse)
		w.U32(v.Body.LinkCount).U32(v.Body.FragmentIndex).U32(v.Body.FragmentOffset).U32(v.Body.XattrIndex)
		writeWords(w, v.Extra)
	case *SymlinkInode:
		w.U32(v.LinkCount).U32(uint32(len(v.TargetBytes))).Bytes(v.TargetBytes)
	case *ExtendedSymlinkInode:
		w.U32(v.LinkCount).U32(uint32(len(v.TargetBytes))).Bytes(v.TargetBytes).U32(v.XattrIndex)
	case *DeviceInode:
		w.U32(v.Body.LinkCount).U32(v.Body.Device)
	case *ExtendedDeviceInode:
		w.U32(v.Body.LinkCount).U32(v.Body.Device).U32(v.XattrIndex)
	case *IpcInode:
		w.U32(v.LinkCount)
	case *ExtendedIpcInode:
		w.U32(v.LinkCount).U32(v.XattrIndex)
	default:
		return nil, types.Errorf(op, types.KindInternal, "unsupported inode value %T", inode)
	}
	return w.Data(), nil
}

func writeWords(w *helpers.FieldWriter, words []uint32) {
	for _, word := range words {
		w.U32(word)
	}
}

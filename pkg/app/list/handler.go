package list

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
	"github.com/deploymenttheory/go-squashfs/pkg/services"
)

// Handle processes a listing request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Target.Apply(ctx)
	if req.Path == "" {
		req.Path = "/"
	}

	ctx.Log(fmt.Sprintf("Listing %s in: %s", req.Path, req.Target.String()))
	ctx.Progress("Opening archive...", 10)

	filesystem, err := ctx.Services().FilesystemService()
	if err != nil {
		return nil, app.WrapError("failed to start filesystem service", err)
	}

	ctx.Progress("Reading directories...", 30)
	files, err := filesystem.ListDirectory(ctx, req.Target.ArchivePath, req.Path, services.ListOptions{
		Recursive:      req.Recursive,
		FollowSymlinks: req.FollowSymlinks,
		Filters:        req.filters(),
	})
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to list %s", req.Path), err)
	}

	response := &Response{
		Path:       req.Path,
		Entries:    make([]Entry, 0, len(files)),
		Recursive:  req.Recursive,
		Exclusions: req.Exclude,
	}
	for _, f := range files {
		response.Entries = append(response.Entries, newEntry(f))
		switch f.Type {
		case "directory":
			response.Counts.Directories++
		case "file":
			response.Counts.Files++
			response.TotalSize += f.Size
		case "symlink":
			response.Counts.Symlinks++
		default:
			response.Counts.Other++
		}
	}
	response.ListTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Listed %d entries in %v", len(response.Entries), response.ListTime))
	return response, nil
}

func newEntry(f services.FileInfo) Entry {
	entry := Entry{
		Path:        f.Path,
		Name:        f.Name,
		Type:        f.Type,
		Size:        f.Size,
		Permissions: app.FormatPermissions(f.Type, f.Mode),
		Owner:       f.Owner,
		Group:       f.Group,
		Modified:    f.Modified,
		Inode:       f.Inode,
		LinkCount:   f.LinkCount,
		LinkTarget:  f.LinkTarget,
	}
	if f.Type == "block-device" || f.Type == "char-device" {
		entry.Device = fmt.Sprintf("%d:%d", f.DeviceMajor, f.DeviceMinor)
	}
	return entry
}

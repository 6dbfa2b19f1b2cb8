package inspect

import (
	"fmt"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
	"github.com/deploymenttheory/go-squashfs/pkg/services"
)

// Handle processes an inspection request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Target.Apply(ctx)

	ctx.Log(fmt.Sprintf("Inspecting archive: %s", req.Target.String()))
	ctx.Progress("Reading super block...", 10)

	archives, err := ctx.Services().ArchiveService()
	if err != nil {
		return nil, app.WrapError("failed to start archive service", err)
	}
	info, err := archives.OpenArchive(ctx, req.Target.ArchivePath)
	if err != nil {
		return nil, app.WrapError("failed to open archive", err)
	}

	response := &Response{
		Archive: summarize(info),
		Tables:  make([]Table, 0, len(info.Tables)),
	}
	for _, t := range info.Tables {
		response.Tables = append(response.Tables, Table{Name: t.Name, Start: t.Start, Present: t.Present})
	}

	if req.ShowFragments {
		ctx.Progress("Reading fragment table...", 50)
		fragments, err := archives.ListFragments(ctx, req.Target.ArchivePath)
		if err != nil {
			return nil, app.WrapError("failed to list fragments", err)
		}
		response.Fragments = make([]Fragment, 0, len(fragments))
		for _, f := range fragments {
			response.Fragments = append(response.Fragments, Fragment(f))
		}
	}

	if req.FilePath != "" {
		ctx.Progress("Reading file layout...", 75)
		layout, err := fileLayout(ctx, req)
		if err != nil {
			return nil, err
		}
		response.File = layout
	}

	ctx.Progress("Complete", 100)
	return response, nil
}

func fileLayout(ctx *app.Context, req *Request) (*FileLayout, error) {
	filesystem, err := ctx.Services().FilesystemService()
	if err != nil {
		return nil, app.WrapError("failed to start filesystem service", err)
	}
	stat, err := filesystem.Stat(ctx, req.Target.ArchivePath, req.FilePath, true)
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to find %s", req.FilePath), err)
	}
	mappings, err := filesystem.GetFileMappings(ctx, req.Target.ArchivePath, req.FilePath)
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to map %s", req.FilePath), err)
	}

	layout := &FileLayout{Path: stat.Path, Size: stat.Size, Blocks: make([]Block, 0, len(mappings))}
	for _, m := range mappings {
		layout.Blocks = append(layout.Blocks, Block{
			LogicalOffset:  m.LogicalOffset,
			LogicalSize:    m.LogicalSize,
			PhysicalOffset: m.PhysicalOffset,
			PhysicalSize:   m.PhysicalSize,
			Kind:           blockKind(m),
		})
	}
	return layout, nil
}

func blockKind(m services.FileMapping) string {
	switch {
	case m.Fragment:
		return "fragment"
	case m.Sparse:
		return "sparse"
	case m.Compressed:
		return "compressed"
	default:
		return "raw"
	}
}

func summarize(info services.ArchiveInfo) ArchiveSummary {
	return ArchiveSummary{
		Path:              info.Path,
		Fingerprint:       info.Fingerprint,
		Version:           fmt.Sprintf("%d.%d", info.VersionMajor, info.VersionMinor),
		Compression:       info.Compression,
		CompressorOptions: info.CompressorOptions,
		BlockSize:         info.BlockSize,
		InodeCount:        info.InodeCount,
		FragmentCount:     info.FragmentCount,
		IDCount:           info.IDCount,
		BytesUsed:         info.BytesUsed,
		Modified:          info.Modified,
		Flags:             info.Flags,
		Exportable:        info.Exportable,
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	isvc "github.com/deploymenttheory/go-squashfs/internal/services"
)

// extractionService implements the ExtractionService interface
type extractionService struct {
	archives *archiveService
}

// NewExtractionService creates a new extraction service backed by the given archive service
func NewExtractionService(svc ArchiveService) (ExtractionService, error) {
	archives, ok := svc.(*archiveService)
	if !ok || archives == nil {
		return nil, fmt.Errorf("archive service must be created by NewArchiveService")
	}
	return &extractionService{archives: archives}, nil
}

// Extract copies srcPath from the archive into destDir
func (es *extractionService) Extract(ctx context.Context, archivePath, srcPath, destDir string, opts ExtractionOptions) (ExtractionResult, error) {
	handle, err := es.archives.handle(ctx, archivePath)
	if err != nil {
		return ExtractionResult{}, err
	}
	flags, err := parseFilters(opts.Filters, opts.FollowSymlinks)
	if err != nil {
		return ExtractionResult{}, err
	}

	started := time.Now()
	stats, err := handle.archive.Extract(ctx, srcPath, destDir, isvc.ExtractOptions{
		Filters:       flags,
		Overwrite:     opts.OverwriteExisting,
		PreserveOwner: opts.PreserveOwner,
		Progress:      opts.Progress,
	})

	var result ExtractionResult
	if stats != nil {
		result = ExtractionResult{
			Directories: stats.Directories,
			Files:       stats.Files,
			Symlinks:    stats.Symlinks,
			Skipped:     stats.Skipped,
			Bytes:       stats.Bytes,
		}
	}
	result.Duration = time.Since(started)
	return result, err
}

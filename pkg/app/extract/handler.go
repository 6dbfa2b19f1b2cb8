package extract

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
	"github.com/deploymenttheory/go-squashfs/pkg/services"
)

// Handle processes an extraction request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Target.Apply(ctx)
	if req.Source == "" {
		req.Source = "/"
	}

	ctx.Log(fmt.Sprintf("Extracting %s from %s to %s", req.Source, req.Target.String(), req.Destination))

	extraction, err := ctx.Services().ExtractionService()
	if err != nil {
		return nil, app.WrapError("failed to start extraction service", err)
	}

	progress := &app.ProgressUpdate{Message: "Extracting...", StartedAt: time.Now()}
	lastPercent := -1
	result, err := extraction.Extract(ctx, req.Target.ArchivePath, req.Source, req.Destination, services.ExtractionOptions{
		OverwriteExisting: req.Overwrite,
		PreserveOwner:     req.PreserveOwner,
		FollowSymlinks:    req.FollowSymlinks,
		Filters:           req.filters(),
		Progress: func(done, total int) {
			progress.Completed = int64(done)
			progress.Total = int64(total)
			progress.ElapsedTime = time.Since(progress.StartedAt)
			if percent := progress.Percent(); percent != lastPercent {
				lastPercent = percent
				ctx.Progress(progress.Message, percent)
			}
		},
	})
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to extract %s", req.Source), err)
	}

	response := &Response{
		Source:      req.Source,
		Destination: req.Destination,
		Directories: result.Directories,
		Files:       result.Files,
		Symlinks:    result.Symlinks,
		Skipped:     result.Skipped,
		Bytes:       result.Bytes,
		Duration:    result.Duration,
	}
	ctx.Log(fmt.Sprintf("Extracted %d objects (%s) in %v", response.Total(), app.FormatBytes(response.Bytes), response.Duration))
	return response, nil
}

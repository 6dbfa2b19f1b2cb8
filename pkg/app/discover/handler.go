package discover

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
	"github.com/deploymenttheory/go-squashfs/pkg/services"
)

// Handle processes a discovery request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Target.Apply(ctx)
	if req.StartPath == "" {
		req.StartPath = "/"
	}

	ctx.Log(fmt.Sprintf("Starting file discovery in: %s", req.Target.String()))
	logSearchCriteria(ctx, req)
	ctx.Progress("Opening archive...", 5)

	archives, err := ctx.Services().ArchiveService()
	if err != nil {
		return nil, app.WrapError("failed to start archive service", err)
	}
	filesystem, err := ctx.Services().FilesystemService()
	if err != nil {
		return nil, app.WrapError("failed to start filesystem service", err)
	}
	info, err := archives.OpenArchive(ctx, req.Target.ArchivePath)
	if err != nil {
		return nil, app.WrapError("failed to open archive", err)
	}

	m, err := newMatcher(req)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Files: []FileResult{},
		ArchiveInfo: ArchiveInfo{
			Path:        info.Path,
			Fingerprint: info.Fingerprint,
			Compression: info.Compression,
			InodeCount:  info.InodeCount,
		},
		SearchQuery: createSearchQuery(req),
	}

	ctx.Progress("Scanning archive...", 25)
	err = filesystem.Walk(ctx, req.Target.ArchivePath, req.StartPath, services.ListOptions{Recursive: true}, func(f services.FileInfo) error {
		response.Scanned++
		if f.Name == "" {
			return nil
		}
		if !m.matchMetadata(f) {
			return nil
		}
		if m.content != nil {
			found, err := m.matchContent(ctx, filesystem, req.Target.ArchivePath, f)
			if err != nil || !found {
				return err
			}
		}

		response.TotalFound++
		if len(response.Files) < req.MaxResults {
			response.Files = append(response.Files, newFileResult(f))
		} else {
			response.Truncated = true
		}
		return nil
	})
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to search %s", req.StartPath), err)
	}

	response.SearchTime = time.Since(startTime)
	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Discovery completed: found %d files in %v", response.TotalFound, response.SearchTime))
	return response, nil
}

// matcher holds the compiled search criteria
type matcher struct {
	caseSensitive bool
	pattern       string
	regex         *regexp.Regexp
	extensions    map[string]bool
	types         map[string]bool
	minSize       int64
	maxSize       int64
	after         time.Time
	before        time.Time
	content       []byte
}

func newMatcher(req *Request) (*matcher, error) {
	m := &matcher{caseSensitive: req.CaseSensitive, pattern: req.NamePattern, minSize: -1, maxSize: -1}

	if !m.caseSensitive {
		m.pattern = strings.ToLower(m.pattern)
	}
	if req.NameRegex != "" {
		expr := req.NameRegex
		if !m.caseSensitive {
			expr = "(?i)" + expr
		}
		regex, err := regexp.Compile(expr)
		if err != nil {
			return nil, app.NewError(app.ErrCodeInvalidInput, "invalid regex pattern", err)
		}
		m.regex = regex
	}
	if len(req.Extensions) > 0 {
		m.extensions = make(map[string]bool, len(req.Extensions))
		for _, ext := range req.Extensions {
			m.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
		}
	}
	if len(req.Types) > 0 {
		m.types = make(map[string]bool, len(req.Types))
		for _, t := range req.Types {
			m.types[t] = true
		}
	}
	if req.MinSize != "" {
		m.minSize, _ = ParseSize(req.MinSize)
	}
	if req.MaxSize != "" {
		m.maxSize, _ = ParseSize(req.MaxSize)
	}
	if req.ModifiedAfter != "" {
		m.after, _ = time.Parse(dateLayout, req.ModifiedAfter)
	}
	if req.ModifiedBefore != "" {
		m.before, _ = time.Parse(dateLayout, req.ModifiedBefore)
	}
	if req.ContentSearch != "" {
		m.content = []byte(req.ContentSearch)
		if !m.caseSensitive {
			m.content = bytes.ToLower(m.content)
		}
	}
	return m, nil
}

// matchMetadata applies every criterion that does not need file contents
func (m *matcher) matchMetadata(f services.FileInfo) bool {
	name := f.Name
	if !m.caseSensitive {
		name = strings.ToLower(name)
	}
	if m.pattern != "" {
		if matched, _ := path.Match(m.pattern, name); !matched {
			return false
		}
	}
	if m.regex != nil && !m.regex.MatchString(f.Name) {
		return false
	}
	if m.extensions != nil && !m.extensions[extension(f.Name)] {
		return false
	}
	if m.types != nil && !m.types[f.Type] {
		return false
	}

	size := int64(f.Size)
	if m.minSize >= 0 && size < m.minSize {
		return false
	}
	if m.maxSize >= 0 && size > m.maxSize {
		return false
	}
	if !m.after.IsZero() && f.Modified.Before(m.after) {
		return false
	}
	if !m.before.IsZero() && !f.Modified.Before(m.before) {
		return false
	}
	return true
}

// matchContent reports whether a regular file contains the search text
func (m *matcher) matchContent(ctx *app.Context, filesystem services.FilesystemService, archivePath string, f services.FileInfo) (bool, error) {
	if f.Type != "file" {
		return false, nil
	}
	data, err := filesystem.ReadFile(ctx, archivePath, f.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	if !m.caseSensitive {
		data = bytes.ToLower(data)
	}
	return bytes.Contains(data, m.content), nil
}

// logSearchCriteria logs the search criteria for verbose output
func logSearchCriteria(ctx *app.Context, req *Request) {
	if !ctx.Verbose {
		return
	}

	ctx.Log("Search criteria:")
	ctx.Log("  Start path: " + req.StartPath)
	if req.NamePattern != "" {
		ctx.Log(fmt.Sprintf("  Name pattern: %s", req.NamePattern))
	}
	if req.NameRegex != "" {
		ctx.Log(fmt.Sprintf("  Name regex: %s", req.NameRegex))
	}
	if len(req.Extensions) > 0 {
		ctx.Log(fmt.Sprintf("  Extensions: %s", strings.Join(req.Extensions, ", ")))
	}
	if len(req.Types) > 0 {
		ctx.Log(fmt.Sprintf("  Types: %s", strings.Join(req.Types, ", ")))
	}
	if req.ContentSearch != "" {
		ctx.Log(fmt.Sprintf("  Content search: %q", req.ContentSearch))
	}
	if req.MinSize != "" || req.MaxSize != "" {
		ctx.Log(fmt.Sprintf("  Size range: %s - %s", req.MinSize, req.MaxSize))
	}
}

func newFileResult(f services.FileInfo) FileResult {
	return FileResult{
		Path:        f.Path,
		Name:        f.Name,
		Size:        int64(f.Size),
		Modified:    f.Modified,
		Type:        f.Type,
		Inode:       f.Inode,
		Permissions: app.FormatPermissions(f.Type, f.Mode),
		Owner:       f.Owner,
		Group:       f.Group,
		Extension:   extension(f.Name),
		LinkTarget:  f.LinkTarget,
	}
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// createSearchQuery creates a SearchQuery from the request
func createSearchQuery(req *Request) SearchQuery {
	return SearchQuery{
		StartPath:      req.StartPath,
		NamePattern:    req.NamePattern,
		NameRegex:      req.NameRegex,
		Extensions:     req.Extensions,
		CaseSensitive:  req.CaseSensitive,
		Types:          req.Types,
		MinSize:        req.MinSize,
		MaxSize:        req.MaxSize,
		ModifiedAfter:  req.ModifiedAfter,
		ModifiedBefore: req.ModifiedBefore,
		ContentSearch:  req.ContentSearch,
		MaxResults:     req.MaxResults,
	}
}

package services

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/device"
)

// ServiceFactory provides a centralized way to create and manage archive services
type ServiceFactory struct {
	config *device.Config
	log    logrus.FieldLogger

	archiveService    *archiveService
	filesystemService FilesystemService
	extractionService ExtractionService
	mu                sync.RWMutex
	initialized       bool
}

// NewServiceFactory creates a new service factory instance. A nil config
// selects device.DefaultConfig and a nil logger the logrus standard logger.
func NewServiceFactory(config *device.Config, log logrus.FieldLogger) *ServiceFactory {
	return &ServiceFactory{config: config, log: log}
}

// Initialize initializes all services with their dependencies
func (sf *ServiceFactory) Initialize() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.initializeLocked()
}

func (sf *ServiceFactory) initializeLocked() error {
	if sf.initialized {
		return nil
	}

	// the archive service owns every open archive; the others share it
	archives := newArchiveService(sf.config, sf.log)

	filesystem, err := NewFilesystemService(archives)
	if err != nil {
		return fmt.Errorf("failed to create filesystem service: %w", err)
	}
	extraction, err := NewExtractionService(archives)
	if err != nil {
		return fmt.Errorf("failed to create extraction service: %w", err)
	}

	sf.archiveService = archives
	sf.filesystemService = filesystem
	sf.extractionService = extraction
	sf.initialized = true
	return nil
}

// ArchiveService returns the archive service instance
func (sf *ServiceFactory) ArchiveService() (ArchiveService, error) {
	if err := sf.ensure(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.archiveService, nil
}

// FilesystemService returns the filesystem service instance
func (sf *ServiceFactory) FilesystemService() (FilesystemService, error) {
	if err := sf.ensure(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.filesystemService, nil
}

// ExtractionService returns the extraction service instance
func (sf *ServiceFactory) ExtractionService() (ExtractionService, error) {
	if err := sf.ensure(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.extractionService, nil
}

func (sf *ServiceFactory) ensure() error {
	sf.mu.RLock()
	initialized := sf.initialized
	sf.mu.RUnlock()
	if initialized {
		return nil
	}
	return sf.Initialize()
}

// Shutdown closes every open archive and resets the factory
func (sf *ServiceFactory) Shutdown() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if !sf.initialized {
		return nil
	}

	err := sf.archiveService.Close()

	sf.archiveService = nil
	sf.filesystemService = nil
	sf.extractionService = nil
	sf.initialized = false

	if err != nil {
		return fmt.Errorf("failed to close archives: %w", err)
	}
	return nil
}

// IsInitialized returns whether the factory has been initialized
func (sf *ServiceFactory) IsInitialized() bool {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.initialized
}

// ServiceInfo represents information about a service
type ServiceInfo struct {
	Name        string
	Description string
	Available   bool
}

// ListAvailableServices returns information about all available services
func (sf *ServiceFactory) ListAvailableServices() []ServiceInfo {
	return []ServiceInfo{
		{
			Name:        "archive",
			Description: "Archive opening, super block summary and fragment table listing",
			Available:   true,
		},
		{
			Name:        "filesystem",
			Description: "Path resolution, directory listing, tree walks and file reads",
			Available:   true,
		},
		{
			Name:        "extraction",
			Description: "Extraction of files and directory trees to the host filesystem",
			Available:   true,
		},
	}
}

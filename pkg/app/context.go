package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/pkg/services"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool
	Out          io.Writer

	// Common timeouts
	DefaultTimeout time.Duration

	// Progress reporting
	ProgressCallback func(message string, percent int)

	// Logger receives diagnostics. Its level follows Verbose and Quiet.
	Logger *logrus.Logger

	// Config is the image configuration handed to opened archives
	Config *device.Config

	services *services.ServiceFactory
}

// NewContext creates a new application context
func NewContext() *Context {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	return &Context{
		Context:        context.Background(),
		OutputFormat:   "table",
		Out:            os.Stdout,
		DefaultTimeout: 30 * time.Second,
		Logger:         logger,
	}
}

// ApplyVerbosity sets the logger level from the Verbose and Quiet flags
func (c *Context) ApplyVerbosity() {
	switch {
	case c.Quiet:
		c.Logger.SetLevel(logrus.ErrorLevel)
	case c.Verbose:
		c.Logger.SetLevel(logrus.DebugLevel)
	default:
		c.Logger.SetLevel(logrus.WarnLevel)
	}
}

// WithTimeout creates a context with timeout
func (c *Context) WithTimeout(timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// Services returns the service factory shared by handlers, creating it on first use
func (c *Context) Services() *services.ServiceFactory {
	if c.services == nil {
		c.services = services.NewServiceFactory(c.Config, c.Logger)
	}
	return c.services
}

// Close shuts down the services and closes every archive they opened
func (c *Context) Close() error {
	if c.services == nil {
		return nil
	}
	return c.services.Shutdown()
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(message string) {
	c.Logger.Debug(message)
}

// Error outputs an error message unless quiet
func (c *Context) Error(message string) {
	c.Logger.Error(message)
}

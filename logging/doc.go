// Package logging provides a minimal logging interface and adapters for agencyhub.
//
// The Logger interface defines the standard leveled methods (Debug, Info, Warn,
// Error) every component logs through. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (the default of every component)
//   - HubLogger with agency/thread context and domain helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	manager := agency.NewManager(factory, func(o *agency.Options) { o.Logger = logger })
//
// Arguments after the message are slog style key/value pairs.
package logging

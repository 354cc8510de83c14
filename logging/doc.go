// Package logging provides a minimal logging interface and adapters for agentbridge.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that servers, agents and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - HCLogAdapter wrapping hashicorp/go-hclog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "json"})
//	srv := httpapi.New(store, func(o *httpapi.Options) { o.Logger = logger })
//
// Messages are dot separated event names ("tool.call.start") followed by
// key/value pairs.
package logging

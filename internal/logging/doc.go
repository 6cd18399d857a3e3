// Package logging provides a simple leveled logging interface for the
// media fetcher.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (request coalescing, cache hits)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level is read from DEBUG or LOG_LEVEL on first use and can be
// overridden with SetLevel.
package logging

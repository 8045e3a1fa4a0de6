// Package logging provides structured logging for the bdsc client and server.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the repository: connection events, exchange
// outcomes and raw byte dumps of partial replies.
//
// # Log Levels
//
//   - Debug: hex/ASCII dumps of discarded replies, edge delivery
//   - Info: connections, completed exchanges, resolution results
//   - Warn: failed exchanges, fallback endpoint, non-fatal startup steps
//   - Error: fatal startup failures
//
// # Configuration
//
// Logging is silent unless a level is given on the command line or through
// the BDSC_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Log output goes to stderr so that the echo sink on stdout stays readable.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging

// Package log provides the logging abstraction used across recship.
//
// Components log through the Logger interface so the dispatch core stays
// independent of any logging library. A zerolog adapter backs the CLI and a
// no-op logger backs tests.
//
//	logger, err := log.NewConsoleLogger(os.Stderr, "info")
//	logger.Warn("malformed feed line", log.String("source", path), log.Int("line", n))
//
// Implement Logger to route recship diagnostics into another logging stack.
package log

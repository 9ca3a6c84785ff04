// Package log provides the structured logging facade for pubsub services.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Loggers are constructed
// explicitly and passed by dependency injection; there is no package-level
// default.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("ns", "default"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config with string
// level ("debug".."error") and format ("text" or "json") settings.
//
// # Interop
//
// To capture output from libraries that write through the standard library
// logger (Pebble does), use RedirectStdLog.
package log

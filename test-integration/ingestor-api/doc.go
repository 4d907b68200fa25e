// Package integration provides end-to-end tests for the ingestor server.
// They start the application against fake source APIs and observe it through
// the HTTP API, the status store and the file sink.
package integration

// Package logging provides structured logging with per-module log levels.
//
// A Registry is created once by the process entry point and owns every sink:
//   - text or JSON records on stdout when a terminal, pipe, or file is attached
//   - the systemd journal when journald is reachable
//   - an in-memory ring buffer served over the HTTP API
//
// Components never reach for a global. They receive a logger at construction:
//
//	reg := logging.New(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//		},
//	})
//	defer reg.Close()
//
//	cam, err := webcam.New("/dev/video0", webcam.WithLogger(reg.Logger("webcam")))
//
// Levels can be changed at runtime with Apply (after a config reload) or
// SetLevel for a single module.
//
// # Viewing Logs
//
//	journalctl -t webcam -f
//	journalctl -t webcam MODULE=capture DEVICE=/dev/video0
//
// # Configuration
//
// Keys other than level and format name a module:
//
//	[logging]
//	level = "info"
//	format = "text"
//	webcam = "debug"
//	api = "warn"
package logging

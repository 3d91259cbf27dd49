// Package logging provides slog loggers with per-module levels.
//
// Call Initialize once at startup, then ask for a logger per component:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"capture": "debug", "mjpeg": "warn"},
//	})
//	logger := logging.GetLogger("capture")
//
// Records go to stdout and, on hosts running journald, to the systemd
// journal under the identifier "droolon":
//
//	journalctl -t droolon MODULE=channel CHANNEL=left
//
// Module levels are held in slog.LevelVar values, so loggers obtained before
// Initialize or SetModuleLevel pick up the new level.
package logging

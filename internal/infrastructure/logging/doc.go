// Package logging provides structured logging for Overlay Core.
//
// It wraps log/slog with the service defaults (service name and build
// version on every entry), JSON output for production and text output for
// development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the OBS password, JWT secret or operator passwords.
package logging

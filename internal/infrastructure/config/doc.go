// Package config loads and validates Overlay Core configuration.
//
// Configuration is read once at startup from a YAML file, layered over
// built-in defaults and then overridden by OVERLAY_* environment variables.
// Secrets (JWT secret, OBS password, MQTT and InfluxDB credentials) are
// expected to come from the environment.
//
// The overlay section is the per-deployment display-field mapping: which OBS
// scene is selected for runs and intermissions, which text inputs receive the
// current and next run's attributes, and how many runner and commentator slots
// exist on screen.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

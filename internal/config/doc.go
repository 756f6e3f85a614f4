// Package config provides configuration loading and validation for the
// voice gateway. It handles YAML-based configuration with per-section
// validation covering the HTTP API, the three pipeline backends, the
// conversation policy, and logging.
package config

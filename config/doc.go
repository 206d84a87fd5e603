// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Each entry of feeds describes one agency: static schedule directory,
// realtime endpoints, monitored combos and alert rules. Secrets are read from
// the environment, optionally populated from a .env file.
package config

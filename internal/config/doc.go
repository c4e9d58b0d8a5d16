// Package config provides configuration loading and validation for the voice client.
// It handles YAML-based configuration layered over built-in defaults, .env files and
// VOICECLIENT_* environment overrides.
package config

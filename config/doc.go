// Package config loads toolpipe settings from defaults, an optional YAML file,
// an optional .env file and TOOLPIPE_* environment variables, in increasing
// precedence. Secret-bearing values are resolved through package secret
// before validation.
package config

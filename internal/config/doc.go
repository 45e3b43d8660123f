// Package config loads, validates, and watches the daemon's YAML
// configuration. Credentials are referenced by environment variable name and
// resolved at use time, never stored in the file.
package config

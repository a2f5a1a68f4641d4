// Package config loads scout configuration from local and global YAML files
// and layers them with precedence rules: CLI flags over the local file over
// the global file over built-in defaults. It is internal; CLI code maps the
// result onto engine configuration.
package config

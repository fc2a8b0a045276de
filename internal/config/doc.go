// Package config holds lorecrawl's run settings: built-in defaults, an
// optional YAML file and validation.
package config

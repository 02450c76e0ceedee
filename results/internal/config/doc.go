// Package config loads the results-server configuration from the `results:`
// section of a YAML file.
//
// API keys are never stored in the file itself; the config names an
// environment variable and the key is resolved at startup.
package config

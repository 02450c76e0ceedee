// Package auth enforces API-key authentication on incoming HTTP requests.
//
// The expected key is resolved from the environment at startup; the config
// file only names the variable.
package auth

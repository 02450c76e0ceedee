// Package certs handles the TLS fixture material a profiling run depends on:
// loading and validating PEM certificate/key files, generating self-signed
// CA/server/client sets for test environments, producing the deliberately
// corrupted negative-test pair (word-boundary case mutation), and inspecting
// the leaf certificate a live endpoint presents.
package certs

// Package harness manages the inference server a profiling run measures
// against: launching the server process with the profile's pass-through
// server flags (local mode), probing its gRPC endpoint for readiness over the
// standard health protocol, and stopping it when the sweep finishes.
//
// Probe credentials are built from the profile's SSL flag maps. When SSL is
// requested there is no downgrade path: a client pair that fails to load —
// such as the corrupted negative-test fixture — fails the probe before any
// connection is attempted.
package harness

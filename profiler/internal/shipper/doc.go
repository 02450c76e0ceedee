// Package shipper delivers run measurements to the results server.
//
// Ship is non-blocking: measurements are buffered in memory and drained by a
// background Run loop, with oldest-first eviction when the buffer fills and
// truncated exponential backoff while the server is unreachable.
package shipper

// Package ws streams run progress to WebSocket clients.
//
// The hub broadcasts the live run list on a fixed interval, so a dashboard
// following a sweep sees measurements land without polling. Dead clients are
// detected with ping/pong frames and dropped.
package ws

// Package sweep turns a profile configuration into the sequence of run
// configurations to measure.
//
// With run_config_search_disable set, the sequence is exactly the cartesian
// product of the configured batch sizes and concurrency values for each model,
// in document order, and failures never trigger alternate configurations.
//
// Otherwise a doubling search walks the (batch size, concurrency) space per
// model, advancing a dimension only while throughput keeps improving by at
// least the gain threshold and the configuration keeps passing constraints.
package sweep

// Package metrics exposes run counters through a Prometheus registry.
//
// The scraper is a batch job, so nothing is served over HTTP. Instead the
// registry can be written once at the end of a run in the node-exporter
// textfile format, for pickup by the textfile collector.
//
// A nil *Collector is valid and discards every observation.
package metrics

// Package sinks contains the bundled progress.Sink implementations: a
// structured-log sink, a Prometheus metrics sink, and a Google Cloud Pub/Sub
// sink that feeds the dashboard's push channel.
package sinks

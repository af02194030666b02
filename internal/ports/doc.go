// Package ports defines the interfaces between the application core and its
// adapters: the resolver boundary, the provenance sinks (trace file, graph
// store), the event bus, run storage and metrics.
package ports

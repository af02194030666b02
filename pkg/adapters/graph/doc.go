// Package graph holds the shared identity and payload mapping for graph
// exporters. Both the Neo4j exporter and the in-memory exporter build the
// same node identities from it, which is what makes re-export idempotent.
package graph

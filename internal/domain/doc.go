// Package domain contains the core types of the CF14 semantic calculator:
// cells, matrices, stage provenance, run state, lifecycle events and the
// error taxonomy. Types here are persistence-agnostic; adapters map them to
// trace files, Redis and Neo4j.
package domain

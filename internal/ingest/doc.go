// Package ingest bridges a single submission to the external event source.
// Each Submit opens its own connection, sends one envelope and exposes the
// validated inbound events as a Stream.
package ingest

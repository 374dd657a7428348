// Package metrics keeps a small in-process registry of labelled counters and
// histograms for the REST surface, the workflow pipeline and archival, and
// renders every family in the Prometheus text format.
package metrics

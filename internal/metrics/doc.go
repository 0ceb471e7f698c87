// Package metrics records Prometheus metrics for the LaTeX render manager.
//
// A Collector registers its vectors on the Registerer it is given, so tests
// and embedding applications can keep them off the global registry.
package metrics

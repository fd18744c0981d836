// Package metrics defines and registers the engine's Prometheus metrics:
// gauge vectors for workspace and queue collection sizes, counters for
// submitted/passed/failed/retried requests, histograms for acquire-wait
// and task duration, and reconciler cycle counters. All metrics are
// registered at package init via prometheus.MustRegister and exposed
// through Handler() for scraping.
//
// Counters and histograms are updated directly at the call site that
// produces the value (worker.processOne, reconciler.reconcile). Gauges
// describing "how many are in state X right now" are instead sampled on
// an interval by Collector, since polling the pool and queue once per
// tick is cheaper than instrumenting every mutation site.
package metrics

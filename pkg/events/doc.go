// Package events is an in-memory pub/sub bus for request and workspace
// lifecycle events: enqueued, running, retried, completed, failed, and the
// workspace-side acquired/released/error/recovered transitions. Broker
// publishes to a buffered channel; a single broadcast loop fans out to
// per-subscriber channels, dropping on a full buffer rather than blocking.
package events

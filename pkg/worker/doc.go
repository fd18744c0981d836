// Package worker implements the execution worker loop: pair one pending
// request with one workspace, drive execution through an Executor,
// classify the outcome, and recycle both the queue entry and the
// workspace — in a loop until stopped.
package worker

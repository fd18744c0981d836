// Package log provides structured logging via zerolog: a process-wide
// logger configured once with log.Init, and component-scoped child
// loggers (WithComponent, WithSessionID, WithWorkspaceID, WithRequestID,
// WithWorkerID) for attaching context without repeating fields.
package log

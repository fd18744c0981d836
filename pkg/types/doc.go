// Package types is the shared vocabulary of the engine: Workspace,
// Request, Result, and Report. Every other package imports it; it imports
// nothing from the rest of the module.
package types

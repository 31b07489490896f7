// Package tool implements the tool registry: schema-validated, metered
// execution of builtin, external (command line) and model-backed
// capabilities.
//
// ExecuteTool never runs a call whose arguments fail validation; it returns a
// VALIDATION_ERROR listing every violation instead. Once a call is dispatched,
// execution failures are reported inside the returned Result (message,
// captured stdout/stderr and exit code) rather than as an error, so callers can
// branch on Result.Success.
package tool

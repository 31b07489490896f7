// Package testutil contains helpers used across tests: a scripted model
// backend and a stub agent. They are not intended for production usage.
package testutil

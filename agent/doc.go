// Package agent contains the agent lifecycle, the eight built-in agent
// strategies and the Factory that builds them from configuration.
//
// Every agent is a *BaseAgent wrapping a set of Hooks:
//
//  1. Setup runs once from Initialize
//  2. Run executes a single task against an Execution
//  3. Teardown runs once from Shutdown
//
// BaseAgent supplies identity, a scoped logger, the lifecycle guard
// (uninitialized -> initialized -> shut down) and the result envelope with
// zeroed metrics. Hooks only fill in the payload.
//
// The built-in strategies share one pattern:
//   - ask the model for a typed request as JSON (RequestStructured)
//   - on a parse or model failure, fall back to a deterministic heuristic
//   - perform the domain action, usually one model call per file or section
//   - aggregate into a payload with computed quality or severity metrics
//   - optionally apply the result through permitted tools (ApplyTool)
package agent

// Package model defines the provider‑agnostic abstractions for the text
// generation backends sitting behind the model router.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (router, agents) remain decoupled from vendor SDKs.
// The router selects the model name; a backend serving several models reads
// it from Request.Model.
package model

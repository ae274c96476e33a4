// Package model defines the provider-agnostic abstractions for talking to
// remote language-model backends.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Report HTTP failures uniformly as *StatusError so retry policies can
//     classify them without knowing the vendor SDK
//   - Facilitate scripted mocking for tests (MockModel)
//
// Providers (gemini, openai, anthropic) live in sub-packages.
package model

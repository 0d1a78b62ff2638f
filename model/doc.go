// Package model defines the provider-agnostic abstractions for talking to
// language models inside agencyhub.
//
//   - Model: a single synchronous Generate call with tool definitions
//   - Catalog: named models with a default, resolved per agent
//   - CircuitBreaker: fail-fast wrapper around any Model
//   - MockModel / ScriptedModel: deterministic models for tests
//
// Providers (OpenAI, Anthropic, Bedrock) live in sub packages so higher
// layers stay decoupled from vendor SDKs.
package model

// Package model defines the inference-service abstraction used by the
// routing and streaming layers, along with provider adapters (see the
// openai and anthropic subpackages) and a deterministic stub for tests.
package model

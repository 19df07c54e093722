// Package core contains the shared data model of the intent orchestration
// engine: sessions and their append-only turn history, the closed handler
// set, content parts, output chunks streamed to callers, classification
// results and the per-turn execution contexts passed between components.
package core

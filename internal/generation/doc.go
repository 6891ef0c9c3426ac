// Package generation implements the generation job orchestrator: it accepts a
// product image plus options, runs the staged pipeline (analysis, then package
// designs, ad images, and marketing texts in parallel), enforces a global
// concurrency cap, and publishes per-job progress to subscribers.
//
// The package is the single authority for job state. Transports (HTTP,
// WebSocket) consume the Orchestrator API and never touch job records
// directly.
package generation

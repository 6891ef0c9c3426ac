// Package ai adapts external generative providers to the generation
// package's capability contracts. Claude covers vision analysis and
// marketing texts, OpenAI covers image synthesis, and Gemini can stand in
// for any capability. The factory wires one client per selected provider
// from configuration.
//
// Clients make exactly one provider call per invocation and classify
// failures into generation error kinds; retry scheduling belongs to the
// pipeline executor.
package ai

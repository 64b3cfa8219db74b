// Package instruction parses flow node instructions into a typed grammar and
// executes them.
//
// Flows are compiled once when loaded: "say <type> [json]" becomes *Say,
// "[server:]name [json]" becomes *Action and node transitions become
// *Transition. A Processor hands each compiled instruction to the matching
// Strategy and returns exactly one domain.ProcessingResult.
package instruction

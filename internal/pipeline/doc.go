// Package pipeline is the CLI's orchestration layer: it expands inputs,
// loads rules, runs the remux engine (or only plans it for a dry run),
// renders plans and conflicts, records metrics, and logs a run summary.
// The probe listing (Analyze) lives here too.
package pipeline

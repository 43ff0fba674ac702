// Package flow models playbook definitions as DAG templates and validates
// them before any execution: edges are derived from declared inputs and
// outputs, never authored, and a definition only becomes runnable after
// passing the single-writer, referential-integrity and acyclicity checks.
package flow

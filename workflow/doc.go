// Package workflow describes declarative chains of agent steps and the
// results of running them. Execution lives in the engine package.
package workflow

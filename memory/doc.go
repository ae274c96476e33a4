// Package memory contains core.MemoryStore implementations and the study
// pattern analysis built on top of them.
package memory

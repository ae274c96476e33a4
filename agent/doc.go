// Package agent contains the agent implementations the runtime composes:
//
//  1. ModelAgent, a leaf backed by one language model, an instruction and a
//     sealed tool registry (other agents are exposed to it as tools)
//  2. ParallelAgent, which runs its children concurrently on independent
//     ad-hoc sessions and reassembles their outputs in declaration order
//  3. SequentialAgent, which runs its children one after another, feeding
//     every earlier output into the next stage
//
// Agents are immutable after construction and may be shared read-only by
// several parents. Graphs declared as data (Definition) are validated for
// cycles by BuildGraph before any agent is constructed.
package agent

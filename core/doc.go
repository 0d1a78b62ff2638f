// Package core provides the foundational domain types and contracts used by
// agencyhub. It defines:
//
//   - Configuration records (agencies, agents, tools, skills, sessions)
//   - The agency chart (hub and chain communication edges)
//   - Store interfaces persisting those records
//   - The runtime contract (Capability, Graph, Runtime) an executable agency
//     is built against
//   - Role based message content shared by the model and runtime packages
//   - Sentinel errors every layer maps onto
//
// Implementations (stores, runtimes, model providers) live in sibling
// packages and depend only on these small interfaces.
package core

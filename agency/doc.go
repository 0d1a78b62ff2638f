// Package agency caches built agency graphs and constructs them from stored
// configurations.
//
// A Manager keys live graphs by agency and conversation thread. An entry
// starts under the bare agency key right after construction and moves to
// "{agency}/{thread}" once the graph reports its thread. The Factory turns an
// AgencyConfig into a graph through a core.Runtime and persists the agent
// ids the runtime assigned.
package agency

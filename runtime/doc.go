// Package runtime is the built-in agent runtime. It turns a core.GraphSpec
// into an executable core.Graph of model backed agents.
//
// Communication follows the agency chart:
//
//   - the first single-role node is the entry agent that talks to the user
//   - a chain [a, b, c] lets a message b and b message c
//
// The user conversation lives on the main thread, which is created lazily on
// the first turn. Every sender/recipient pair gets its own thread. Agents
// delegate through the send_message tool.
package runtime

// Package core provides the foundational domain types and execution contexts
// shared by agentbridge's agents, tools and servers. It defines:
//
//   - Content and Parts (role-based conversational payloads, including
//     function calls and function responses)
//   - Sessions (stateful conversational containers with content history)
//   - Pluggable stores for session history and per-session agent memory
//   - ToolContext (scoped execution surface handed to tool implementations)
//
// The package intentionally keeps implementation concerns (persistence,
// protocols, concrete agents) out of scope, exposing small interfaces to
// enable custom backends.
package core

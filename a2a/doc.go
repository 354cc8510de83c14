// Package a2a exposes an agent.Agent over the Agent2Agent protocol and
// provides a client for calling such agents.
//
// A task message selects a skill with a data part {"skill": ..., "input": {...}}
// or with the "skill" metadata key. Text parts are passed to the agent as free
// text. The A2A context id becomes the agent session id, so follow-up messages
// sent with the same context share memory.
package a2a

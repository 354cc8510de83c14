// Package agent defines agents that execute named skills and two
// implementations over the catalog API.
//
// ProductAgent is a wrapper agent: it remembers the last product a session
// touched, chains API calls for multi-step skills and turns API failures into
// contextual errors with recovery hints.
//
// ModelAgent is a language model client: it exposes a single chat skill and
// drives a model through a tool calling loop against any tool.Registry,
// including one discovered from a remote MCP tool provider.
package agent

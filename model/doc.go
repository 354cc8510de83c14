// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Providers (model/openai, model/anthropic) implement Model so agents remain
// decoupled from vendor SDKs. ScriptedModel replays canned responses for
// tests and offline demos.
package model

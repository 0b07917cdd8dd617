// Package completion defines the provider-agnostic wire schema (role/content
// records, completion results, streaming fragments) and the Service contract
// through which the adapter reaches the underlying multi-provider completion
// capability.
//
// The schema deliberately mirrors the OpenAI chat-completions dialect, since
// that is the lingua franca multi-provider engines expose. Inbound tool
// calls are kept as raw JSON so passthrough of provider-specific fields
// never reshapes a payload the adapter does not understand.
package completion

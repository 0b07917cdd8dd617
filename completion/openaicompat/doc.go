// Package openaicompat implements the completion.Service interface against
// any endpoint speaking the OpenAI chat completions protocol. Because the
// multi-provider gateways expose exactly this protocol, one client covers
// every backend reachable through them.
//
// Clients are cached per endpoint via ForEndpoint, so repeated model
// constructions against the same gateway share transport state. Credentials
// and base URLs carried on individual requests override the client's
// defaults for that call only.
package openaicompat

package openaicompat

import (
	"github.com/alphadose/haxmap"
	"github.com/openai/openai-go/option"
)

var endpointRegistry = haxmap.New[string, *Client]()

// ForEndpoint returns the shared Client for the given API base URL,
// creating it on first use. An empty base URL yields the default client,
// which reads its configuration from the environment.
func ForEndpoint(apiBase string, opts ...option.RequestOption) *Client {
	c, _ := endpointRegistry.GetOrCompute(apiBase, func() *Client {
		if apiBase != "" {
			opts = append(opts, option.WithBaseURL(apiBase))
		}
		return New(opts...)
	})
	return c
}

package anyllm

import (
	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/tool"
	"github.com/fogfish/opts"
)

// Option configures a ChatModel at construction time.
type Option = opts.Option[ChatModel]

var (
	// WithAPIKey forwards the credential to the completion capability.
	WithAPIKey = opts.ForName[ChatModel, string]("apiKey")

	// WithAPIBase points the default backend at a different
	// OpenAI-compatible endpoint.
	WithAPIBase = opts.ForName[ChatModel, string]("apiBase")

	// WithStreaming makes Invoke stream under the hood and fold the
	// fragments into its result.
	WithStreaming = opts.ForName[ChatModel, bool]("streaming")

	// WithService replaces the default backend with a custom completion
	// capability.
	WithService = opts.ForName[ChatModel, completion.Service]("svc")

	// WithTokenCallback registers a per-token observer for streaming calls.
	WithTokenCallback = opts.ForName[ChatModel, TokenCallback]("onToken")
)

// WithModelParam declares a default provider parameter sent with every call
// (temperature, max_tokens, ...).
func WithModelParam(key string, value any) Option {
	return opts.Type[ChatModel](func(m *ChatModel) error {
		if m.defaults == nil {
			m.defaults = map[string]any{}
		}
		m.defaults[key] = value
		return nil
	})
}

// WithTools binds tool definitions at construction time. BindTools is the
// derived-model equivalent.
func WithTools(def tool.Definition, extraDefs ...tool.Definition) Option {
	return opts.Type[ChatModel](func(m *ChatModel) error {
		m.tools = append(m.tools, def)
		m.tools = append(m.tools, extraDefs...)
		return nil
	})
}

// CallParams carries per-call arguments for Invoke and Stream.
type CallParams struct {
	stop       []string
	params     map[string]any
	toolChoice any
}

// CallOption configures one completion call.
type CallOption = opts.Option[CallParams]

var (
	// WithStop sets the stop sequences for this call. Conflicts with a
	// `stop` declared via WithModelParam.
	WithStop = opts.ForName[CallParams, []string]("stop")

	// WithToolChoice overrides the bound tool choice for this call.
	WithToolChoice = opts.ForName[CallParams, any]("toolChoice")
)

// WithParam forwards an additional provider parameter for this call only.
func WithParam(key string, value any) CallOption {
	return opts.Type[CallParams](func(p *CallParams) error {
		if p.params == nil {
			p.params = map[string]any{}
		}
		p.params[key] = value
		return nil
	})
}

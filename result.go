package anyllm

import (
	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/messages"
)

// Generation is one candidate completion paired with its generation
// metadata.
type Generation struct {
	Message      messages.Message
	FinishReason string

	_ struct{}
}

// ChatResult is the outcome of one completion call: the candidate
// generations plus the usage counters reported by the upstream engine.
type ChatResult struct {
	Generations []Generation
	Usage       *completion.Usage
	Model       string

	_ struct{}
}

// Package anyllm adapts a multi-provider chat completion capability to the
// chat-model contract used by LLM orchestration frameworks. It owns the
// translation in both directions: typed conversation messages out to the
// provider-agnostic wire schema, and completion responses (blocking or
// streaming) back into typed messages.
//
// The package deliberately does not implement any provider protocol. All
// provider differences are the completion capability's problem; this
// adapter talks one wire dialect and trusts the capability to route it.
// Raw provider payloads it does not understand travel through untouched in
// message metadata, so nothing is lost in translation even when it is not
// modeled.
//
// # Usage
//
//	model, err := anyllm.New("gpt-4o-mini",
//		anyllm.WithAPIBase("http://localhost:4000"),
//		anyllm.WithModelParam("temperature", 0.2),
//	)
//	if err != nil {
//		return err
//	}
//
//	result, err := model.Invoke(ctx, []messages.Message{
//		messages.HumanMessage{Content: "Hello"},
//	})
//
// Streaming returns a channel of events framed by start/end delimiters,
// with one ChunkEvent per fragment and a final ResponseEvent carrying the
// folded result:
//
//	events, err := model.Stream(ctx, msgs)
//	for event := range events {
//		switch e := event.(type) {
//		case anyllm.ChunkEvent:
//			// incremental fragment
//		case anyllm.ResponseEvent:
//			// complete result
//		case anyllm.ErrorEvent:
//			// stream failure
//		}
//	}
//
// Tools bind through BindTools or WithTools; the adapter forwards their
// schemas and surfaces the model's tool calls, it never invokes the
// functions itself.
package anyllm

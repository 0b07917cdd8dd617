// Package messages defines the typed conversation model used on the
// framework-facing side of the adapter: a closed tagged union of message
// variants (system, human, ai, function, tool, generic) and their streaming
// chunk counterparts.
//
// Design decisions:
//   - Closed unions: variants are marked with an unexported method, so a
//     type switch over Message or Chunk is exhaustive and a new wire role
//     cannot silently fall through.
//   - Value semantics: messages are immutable after construction and carry
//     no identity beyond structural equality.
//   - Structured tool calls: ToolCall.Args is always a decoded mapping.
//     Raw argument text exists only in ToolCallChunk, where fragments are
//     concatenated across a stream before decoding.
//   - JSON interop: MarshalMessage/MarshalChunk add a discriminator field so
//     the concrete variant survives a round trip.
//
// The Accumulator folds the chunks of one stream back into a final Message,
// merging tool-call fragments by index. It is per-stream state and must not
// be shared across concurrent streams.
package messages

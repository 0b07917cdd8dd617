// Package tool defines the tool declarations bound to a chat model. A tool
// is an ordinary Go function plus metadata; the parameter schema the model
// sees is generated from the function signature through reflection, and
// ToCompletionTool produces the wire format the completion capability
// expects.
//
// Tools declared here are descriptions only: the adapter never invokes the
// function itself, it forwards the schema and surfaces the model's tool
// calls back to the caller.
package tool

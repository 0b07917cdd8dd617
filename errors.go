package anyllm

import "fmt"

// UnsupportedMessageTypeError reports an outbound message whose variant the
// wire mapper does not recognize. Dropping the message instead would corrupt
// conversation semantics, so this always fails the call. The offending value
// is retained for diagnostics.
type UnsupportedMessageTypeError struct {
	Message any
}

func (e *UnsupportedMessageTypeError) Error() string {
	return fmt.Sprintf("got unknown message type %T: %v", e.Message, e.Message)
}

// UnexpectedResponseTypeError reports that the completion capability
// returned the wrong shape for the requested mode. This is an upstream
// contract violation, not a recoverable data condition.
type UnexpectedResponseTypeError struct {
	Expected string
	Got      any
}

func (e *UnexpectedResponseTypeError) Error() string {
	return fmt.Sprintf("expected %s, got %T", e.Expected, e.Got)
}

// AmbiguousParameterError reports a parameter supplied both as a declared
// default and as a call-time argument. Raised before any external call.
type AmbiguousParameterError struct {
	Name string
}

func (e *AmbiguousParameterError) Error() string {
	return fmt.Sprintf("`%s` found in both the call arguments and the default params", e.Name)
}

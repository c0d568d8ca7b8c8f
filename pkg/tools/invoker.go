// Package tools defines the opaque tool-invocation boundary. The control
// plane issues tool calls by name and reads back text output; tool
// semantics live entirely behind the Invoker.
package tools

import "context"

// Invoker executes a named tool with resolved parameters and returns its
// text output.
type Invoker interface {
	Call(ctx context.Context, toolName string, params map[string]any) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, toolName string, params map[string]any) (string, error)

// Call implements Invoker.
func (f InvokerFunc) Call(ctx context.Context, toolName string, params map[string]any) (string, error) {
	return f(ctx, toolName, params)
}

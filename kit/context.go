package kit

import "context"

type contextKey string

// Context keys shared by the viewer middleware and the MCP tools.
const (
	TransportKey contextKey = "kit_transport" // "http" (viewer) or "mcp" (tools)
	TraceIDKey   contextKey = "kit_trace_id"  // set by shield.TraceID
)

// WithTransport tags ctx with the transport that carried the call.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the transport tag; untagged calls came from the viewer.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

// WithTraceID stores the request trace ID logged by Logging.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID returns the trace ID of ctx, or "".
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

package ctxutil

import "context"

// Job payload keys that carry TraceData from the enqueuing request into the
// job run. "request_id" is taken by generation jobs, so the HTTP request id
// travels under its own key.
const (
	PayloadTraceID       = "trace_id"
	PayloadHTTPRequestID = "http_request_id"
)

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns the non-empty ids as logger key/value pairs.
func (td *TraceData) LogFields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "http_request_id", td.RequestID)
	}
	return out
}

// AddToPayload copies td into a job payload without overwriting keys the
// caller already set.
func (td *TraceData) AddToPayload(payload map[string]any) {
	if td == nil || payload == nil {
		return
	}
	if _, ok := payload[PayloadTraceID]; !ok && td.TraceID != "" {
		payload[PayloadTraceID] = td.TraceID
	}
	if _, ok := payload[PayloadHTTPRequestID]; !ok && td.RequestID != "" {
		payload[PayloadHTTPRequestID] = td.RequestID
	}
}

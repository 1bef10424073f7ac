package reviews

import "context"

type requestIDKey struct{}

// WithRequestID tags ctx so asynchronous review work logs under the originating request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detach drops cancellation and values except the request ID, so analysis
// outlives the HTTP request that scheduled it.
func detach(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), RequestIDFromContext(ctx))
}

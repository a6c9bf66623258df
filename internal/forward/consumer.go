package forward

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Consumer receives newly observed content. Forward may block; the adapter
// always calls it from its own worker goroutine.
type Consumer interface {
	Forward(ctx context.Context, content string) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, content string) error

// Forward calls f.
func (f ConsumerFunc) Forward(ctx context.Context, content string) error {
	return f(ctx, content)
}

// Discard drops every forward.
var Discard Consumer = ConsumerFunc(func(context.Context, string) error { return nil })

// LogConsumer writes forwarded content to a logger.
type LogConsumer struct {
	Log *logrus.Entry
}

// Forward logs content at info level.
func (c LogConsumer) Forward(ctx context.Context, content string) error {
	if c.Log == nil {
		return fmt.Errorf("log consumer has no logger")
	}
	c.Log.WithFields(logrus.Fields{
		"request_id": RequestID(ctx),
		"bytes":      len(content),
	}).Info(content)
	return nil
}

// DownstreamForwardError wraps a consumer failure.
type DownstreamForwardError struct {
	RequestID string
	Err       error
}

func (e *DownstreamForwardError) Error() string {
	return fmt.Sprintf("forward %s: %v", e.RequestID, e.Err)
}

func (e *DownstreamForwardError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// WithRequestID attaches a forward request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the forward request ID carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

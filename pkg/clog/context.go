package clog

import (
	"context"
	"log/slog"
	"sync"
)

// ctxSlog holds attributes collected while handling one unit of work. Keys
// keep their first insertion order so log lines stay stable between runs.
type ctxSlog struct {
	mu    sync.RWMutex
	keys  []string
	attrs map[string]any
}

type ctxSlogKey struct{}

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxSlogKey{}, &ctxSlog{attrs: make(map[string]any)})
}

func fromContext(ctx context.Context) (*ctxSlog, bool) {
	l, ok := ctx.Value(ctxSlogKey{}).(*ctxSlog)
	return l, ok
}

func (c *ctxSlog) set(key string, value any) {
	if _, exists := c.attrs[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.attrs[key] = value
}

func AddAttribute(ctx context.Context, key string, value any) {
	l, ok := fromContext(ctx)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(key, value)
}

// AddAttributes takes alternating key/value pairs. A trailing key without a
// value is dropped.
func AddAttributes(ctx context.Context, kv ...any) {
	l, ok := fromContext(ctx)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		l.set(key, kv[i+1])
	}
}

func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	l, ok := fromContext(ctx)
	if !ok {
		return zero
	}
	l.mu.RLock()
	v, ok := l.attrs[key]
	l.mu.RUnlock()
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

// Attrs returns a snapshot of the collected attributes in insertion order.
func Attrs(ctx context.Context) []slog.Attr {
	l, ok := fromContext(ctx)
	if !ok {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]slog.Attr, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, slog.Any(k, l.attrs[k]))
	}
	return out
}

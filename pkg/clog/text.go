package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

type TextHandlerConfig struct {
	Color bool
	Level *slog.Level
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

// TextHandler renders one colored headline per record followed by the
// remaining attributes, one per line. The request columns (method, path,
// status) are lifted into the headline when present.
type TextHandler struct {
	cfg   TextHandlerConfig
	attrs []slog.Attr
	mu    *sync.Mutex
	w     io.Writer
}

func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{
		Color: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{
		cfg: cfg,
		mu:  &sync.Mutex{},
		w:   w,
	}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = h.cfg.Level.Level()
	}
	return l >= minLevel
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

// WithGroup is a no-op: records are flat in this format.
func (h *TextHandler) WithGroup(string) slog.Handler {
	return h
}

var headlineColumns = []string{"method", "path", "status"}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	buf := bytes.NewBuffer(make([]byte, 0, 512))
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if h.cfg.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}

	fmt.Fprintf(buf, "%s ", record.Time.Format(time.RFC3339))
	var levelColor color.Attribute
	switch {
	case record.Level >= slog.LevelError:
		levelColor = color.FgRed
	case record.Level >= slog.LevelWarn:
		levelColor = color.FgYellow
	case record.Level >= slog.LevelInfo:
		levelColor = color.FgBlue
	default:
		levelColor = color.FgCyan
	}
	paint(levelColor).Fprintf(buf, "%s ", record.Level)

	var keys []string
	kv := map[string]slog.Value{}
	collect := func(attr slog.Attr) bool {
		if _, seen := kv[attr.Key]; !seen {
			keys = append(keys, attr.Key)
		}
		kv[attr.Key] = attr.Value
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	for _, key := range headlineColumns {
		if v, ok := kv[key]; ok {
			fmt.Fprintf(buf, "%s ", v)
			delete(kv, key)
		}
	}
	paint(color.FgGreen).Fprint(buf, record.Message)
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		paint(color.FgRed).Fprintf(buf, " %s", e)
	}
	buf.WriteString("\n")

	for _, k := range keys {
		v, ok := kv[k]
		if !ok {
			continue
		}
		fmt.Fprintf(buf, "    %s=%s\n", k, v)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// prettyHandler writes "[omni] message key=value" lines for a terminal. It
// carries the same content as the text handler, styled per level. Colors are
// dropped when the writer is not a terminal.
type prettyHandler struct {
	opts   slog.HandlerOptions
	styles prettyStyles
	attrs  []slog.Attr
	groups []string

	mu *sync.Mutex
	w  io.Writer
}

type prettyStyles struct {
	prefix lipgloss.Style
	debug  lipgloss.Style
	info   lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	key    lipgloss.Style
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	r := lipgloss.NewRenderer(w)
	h := &prettyHandler{
		styles: prettyStyles{
			prefix: r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
			debug:  r.NewStyle().Foreground(lipgloss.Color("240")),
			info:   r.NewStyle().Foreground(lipgloss.Color("255")),
			warn:   r.NewStyle().Foreground(lipgloss.Color("208")),
			err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			key:    r.NewStyle().Foreground(lipgloss.Color("81")),
		},
		mu: &sync.Mutex{},
		w:  w,
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(h.styles.prefix.Render("[omni]"))
	b.WriteByte(' ')
	b.WriteString(h.levelStyle(record.Level).Render(record.Message))

	for _, a := range h.attrs {
		h.appendAttr(&b, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	record.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	derived := *h
	derived.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		derived.attrs = append(derived.attrs, a)
	}
	return &derived
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.groups = append(append([]string{}, h.groups...), name)
	return &derived
}

func (h *prettyHandler) levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return h.styles.err
	case level >= slog.LevelWarn:
		return h.styles.warn
	case level >= slog.LevelInfo:
		return h.styles.info
	default:
		return h.styles.debug
	}
}

func (h *prettyHandler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			h.appendAttr(b, key, nested)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(h.styles.key.Render(key + "="))
	b.WriteString(quoteIfNeeded(fmt.Sprint(a.Value.Any())))
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

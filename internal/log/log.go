package log

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
)

var enabledSections = []string{
	"loader",
	"bundle",
}

var level = new(slog.LevelVar)

var LoggerOpts = &slog.HandlerOptions{
	AddSource: false,
	Level:     level,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "time" {
			return slog.Attr{}
		}
		return a
	},
}

var DefaultLogger = slog.New(&filteringHandler{underlying: slog.NewTextHandler(os.Stderr, LoggerOpts)})

// SetLevel changes the minimum level of DefaultLogger and every logger derived from it
func SetLevel(l slog.Level) {
	level.Set(l)
}

var _ slog.Handler = &filteringHandler{}

type filteringHandler struct {
	underlying slog.Handler
	sections   []string
}

func (f filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.underlying.Enabled(ctx, level)
}

func (f filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn || len(f.sections) > 0 {
		return f.underlying.Handle(ctx, record)
	}
	// records logged without a section in WithAttrs may still carry one inline
	wantSection := false
	record.Attrs(func(attr slog.Attr) bool {
		wantSection = wantSection || attr.Key == "section" && sectionEnabled(attr.Value.String())
		return !wantSection
	})
	if !wantSection {
		return nil
	}
	return f.underlying.Handle(ctx, record)
}

func (f filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(attrs))
	sections := slices.Clone(f.sections)

	for _, attr := range attrs {
		if attr.Key == "section" && sectionEnabled(attr.Value.String()) {
			sections = append(sections, attr.Value.String())
		}
		newAttrs = append(newAttrs, attr)
	}
	return &filteringHandler{
		underlying: f.underlying.WithAttrs(newAttrs),
		sections:   sections,
	}
}

func (f filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{
		underlying: f.underlying.WithGroup(name),
		sections:   f.sections,
	}
}

func sectionEnabled(section string) bool {
	return slices.ContainsFunc(enabledSections, func(enabled string) bool {
		return strings.HasPrefix(section, enabled)
	})
}

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(&filteringHandler{
		underlying: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestEnabledSectionIsKept(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf).With("section", "loader")

	logger.Debug("acquired")
	assert.Contains(t, buf.String(), "msg=acquired")
	assert.Contains(t, buf.String(), "section=loader")
}

func TestSubSectionIsKept(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf).With("section", "bundle.html")

	logger.Info("rendered")
	assert.Contains(t, buf.String(), "msg=rendered")
}

func TestUnknownSectionIsDropped(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf).With("section", "frontend")

	logger.Info("noise")
	assert.Empty(t, buf.String())
}

func TestWarningsAlwaysPass(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf).With("section", "frontend")

	logger.Error("boom")
	assert.Contains(t, buf.String(), "msg=boom")
}

func TestInlineSection(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf)

	logger.Info("inline", "section", "bundle")
	logger.Info("dropped")
	assert.Contains(t, buf.String(), "msg=inline")
	assert.NotContains(t, buf.String(), "msg=dropped")
}

package bundle

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func inject(t *testing.T, doc string, srcs ...string) string {
	node, err := html.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	injectScripts(node, srcs...)

	buf := &bytes.Buffer{}
	require.NoError(t, renderHTML(buf, node))
	return buf.String()
}

func TestInjectIntoHead(t *testing.T) {
	out := inject(t, `<html><head><title>x</title></head><body></body></html>`, "index.js")

	assert.Equal(t, `<html><head><title>x</title><script defer="" src="index.js"></script></head><body></body></html>`, out)
}

func TestInjectKeepsOrder(t *testing.T) {
	out := inject(t, `<html><head></head><body></body></html>`, "wasm_exec.js", "index.js")

	assert.Less(t, strings.Index(out, "wasm_exec.js"), strings.Index(out, `src="index.js"`))
}

func TestInjectIntoFragment(t *testing.T) {
	out := inject(t, `<canvas id="c"></canvas>`, "index.js")

	assert.Contains(t, out, `<head><script defer="" src="index.js"></script></head>`)
	assert.Contains(t, out, `<canvas id="c"></canvas>`)
}

func TestInjectIsIdempotent(t *testing.T) {
	doc := `<html><head></head><body><script src="index.js"></script></body></html>`
	out := inject(t, doc, "index.js")

	assert.Equal(t, 1, strings.Count(out, `src="index.js"`))
}

func TestInjectCreatesMissingHead(t *testing.T) {
	doc := &html.Node{Type: html.DocumentNode}
	injectScripts(doc, "index.js")

	buf := &bytes.Buffer{}
	require.NoError(t, renderHTML(buf, doc))
	assert.Equal(t, `<head><script defer="" src="index.js"></script></head>`, buf.String())
}

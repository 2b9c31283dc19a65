package bundle

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultDocument = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title></title>
</head>
<body>
</body>
</html>
`

// writeHTML renders the template of cfg with a script tag for each of
// scripts, and writes it to outDir
func writeHTML(cfg *Config, outDir string, scripts ...string) error {
	var (
		doc *html.Node
		err error
	)
	if cfg.HTML.Template != "" {
		f, err := os.Open(cfg.resolve(cfg.HTML.Template))
		if err != nil {
			return errors.Wrap(err, "could not open HTML template")
		}
		doc, err = html.Parse(f)
		_ = f.Close()
		if err != nil {
			return errors.Wrap(err, "could not parse HTML template")
		}
	} else {
		doc, err = html.Parse(bytes.NewBufferString(defaultDocument))
		if err != nil {
			return errors.Wrap(err, "could not parse default document")
		}
		if title := findElement(doc, atom.Title); title != nil {
			title.AppendChild(&html.Node{Type: html.TextNode, Data: cfg.HTML.Title})
		}
	}

	injectScripts(doc, scripts...)

	out, err := os.Create(filepath.Join(outDir, cfg.HTML.Filename))
	if err != nil {
		return errors.Wrap(err, "could not create HTML file")
	}
	if err := renderHTML(out, doc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func renderHTML(w io.Writer, doc *html.Node) error {
	if err := html.Render(w, doc); err != nil {
		return errors.Wrap(err, "could not render HTML")
	}
	return nil
}

// injectScripts adds a deferred script element to the head of doc for every
// src it does not reference yet
func injectScripts(doc *html.Node, srcs ...string) {
	head := findElement(doc, atom.Head)
	if head == nil {
		// html.Parse always synthesises a head, but documents built by hand may lack one
		head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		root := findElement(doc, atom.Html)
		if root == nil {
			root = doc
		}
		root.InsertBefore(head, root.FirstChild)
	}
	for _, src := range srcs {
		if hasScript(doc, src) {
			continue
		}
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				{Key: "defer"},
				{Key: "src", Val: src},
			},
		})
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func hasScript(n *html.Node, src string) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, attr := range n.Attr {
			if attr.Key == "src" && attr.Val == src {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasScript(c, src) {
			return true
		}
	}
	return false
}

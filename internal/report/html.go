package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/omrgest/internal/store"
)

const shell = `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title></title>` +
	`<style>body{font-family:sans-serif;margin:2rem}table{border-collapse:collapse}` +
	`th,td{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}</style></head><body></body></html>`

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the scan as a standalone HTML page.
func HTML(s store.Scan) ([]byte, error) {
	var frag bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &frag); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return wrapDocument(Title(s), frag.Bytes())
}

// wrapDocument places an HTML fragment into the page shell and sets its
// title.
func wrapDocument(title string, fragment []byte) ([]byte, error) {
	doc, err := html.Parse(strings.NewReader(shell))
	if err != nil {
		return nil, fmt.Errorf("parse shell: %w", err)
	}
	titleNode := findElement(doc, atom.Title)
	body := findElement(doc, atom.Body)
	if titleNode == nil || body == nil {
		return nil, fmt.Errorf("page shell missing title or body")
	}
	titleNode.AppendChild(&html.Node{Type: html.TextNode, Data: title})

	nodes, err := html.ParseFragment(bytes.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return out.Bytes(), nil
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

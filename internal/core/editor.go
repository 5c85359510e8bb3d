package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Editor is the narrow view the pipeline has of a rich-text document. The
// serialized state belongs to the editor and is never interpreted here.
type Editor interface {
	HTML() string
	PlainText() string
	LoadSerialized(state json.RawMessage) error
	OnChange(fn func())
	InsertText(text string) error
}

// HTMLDocument is the server-side Editor. It keeps the browser editor's
// serialized state verbatim next to the HTML snapshot the browser reported
// for it, and edits only the snapshot.
type HTMLDocument struct {
	state     json.RawMessage
	html      string
	cursor    int
	listeners []func()
}

// NewHTMLDocument returns a document over state and its HTML rendering.
// The cursor starts at the end of the document.
func NewHTMLDocument(state json.RawMessage, htmlSrc string) *HTMLDocument {
	return &HTMLDocument{state: state, html: htmlSrc, cursor: -1}
}

func (d *HTMLDocument) HTML() string { return d.html }

// State returns the serialized editor state.
func (d *HTMLDocument) State() json.RawMessage { return d.state }

// LoadSerialized replaces the editor state. The HTML snapshot is left alone
// until the editor reports a new one through SetHTML.
func (d *HTMLDocument) LoadSerialized(state json.RawMessage) error {
	if len(state) == 0 || !json.Valid(state) {
		return ErrInvalidEditorData
	}
	d.state = append(json.RawMessage(nil), state...)
	d.changed()
	return nil
}

// SetHTML replaces the HTML snapshot.
func (d *HTMLDocument) SetHTML(s string) {
	d.html = s
	d.changed()
}

func (d *HTMLDocument) OnChange(fn func()) {
	d.listeners = append(d.listeners, fn)
}

func (d *HTMLDocument) changed() {
	for _, fn := range d.listeners {
		fn()
	}
}

// SetCursor places the cursor offset runes into the document's text.
// A negative offset places it at the end.
func (d *HTMLDocument) SetCursor(offset int) {
	d.cursor = offset
}

// PlainText returns the text content with block elements on their own lines.
func (d *HTMLDocument) PlainText() string {
	nodes, err := parseFragment(d.html)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
}

// InsertText inserts text at the cursor. With the cursor at the end, text
// is appended to the last block element, or to the document when it has
// none. The cursor moves past the inserted text.
func (d *HTMLDocument) InsertText(text string) error {
	nodes, err := parseFragment(d.html)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEditorData, err)
	}

	inserted := false
	if d.cursor >= 0 {
		remaining := d.cursor
		for _, n := range nodes {
			if insertAtOffset(n, text, &remaining) {
				inserted = true
				break
			}
		}
	}
	if !inserted {
		var last *html.Node
		for _, n := range nodes {
			if b := lastBlock(n); b != nil {
				last = b
			}
		}
		tn := &html.Node{Type: html.TextNode, Data: text}
		if last != nil {
			last.AppendChild(tn)
		} else {
			nodes = append(nodes, tn)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return fmt.Errorf("render document: %w", err)
		}
	}
	if d.cursor >= 0 {
		d.cursor += utf8.RuneCountInString(text)
	}
	d.SetHTML(buf.String())
	return nil
}

// insertAtOffset walks text nodes in document order, consuming *remaining
// runes, and splices text in where the count runs out.
func insertAtOffset(n *html.Node, text string, remaining *int) bool {
	if n.Type == html.TextNode {
		runes := []rune(n.Data)
		if *remaining <= len(runes) {
			n.Data = string(runes[:*remaining]) + text + string(runes[*remaining:])
			return true
		}
		*remaining -= len(runes)
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if insertAtOffset(c, text, remaining) {
			return true
		}
	}
	return false
}

func lastBlock(n *html.Node) *html.Node {
	var last *html.Node
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		last = n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := lastBlock(c); b != nil {
			last = b
		}
	}
	return last
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Div, atom.Blockquote, atom.Pre, atom.Td, atom.Th:
		return true
	}
	return false
}

func parseFragment(src string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(src), body)
}

// InsertVariable inserts the placeholder for name once.
func InsertVariable(ed Editor, name string) error {
	name = NormalizeVariableName(name)
	if name == "" {
		return ErrEmptyVariableName
	}
	return ed.InsertText(Placeholder(name))
}

// Preview substitutes every registered variable in the editor's text with
// its sample value, or "" when no sample was given. The editor is not
// modified. Placeholders that are not registered stay as they are.
func Preview(ed Editor, vars []Variable, samples map[string]string) string {
	normalized := make(map[string]string, len(samples))
	for k, v := range samples {
		normalized[NormalizeVariableName(k)] = v
	}
	row := make(Row, len(vars))
	for _, v := range vars {
		row[v.Name] = normalized[v.Name]
	}
	return Substitute(ed.PlainText(), row)
}

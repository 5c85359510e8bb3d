// Package render turns complete HTML documents into PDF bytes.
//
// Three backends implement core.Renderer:
//
//   - Chrome drives a headless browser through the DevTools protocol and
//     prints the page. It is the reference output.
//   - Local lays the document out with gofpdf. It understands headings,
//     paragraphs, lists, tables and inline emphasis, and needs no browser.
//   - HTTP posts the document to a remote render service that speaks the
//     /api/export-pdf contract.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/JonMunkholm/docmerge/internal/config"
	"github.com/JonMunkholm/docmerge/internal/core"
)

// Page margin on every side, in inches.
const marginInches = 0.4

// DefaultTimeout bounds a single render when none is configured.
const DefaultTimeout = 30 * time.Second

// Backend is a renderer that may hold resources such as a browser process.
type Backend interface {
	core.Renderer
	Close() error
}

// New builds the backend selected by cfg.Driver.
func New(cfg config.RenderConfig) (Backend, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return NewLocal(), nil
	case "chrome":
		return NewChrome(ChromeOptions{ExecPath: cfg.ChromePath, Timeout: timeout}), nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("render driver http requires a URL")
		}
		return NewHTTP(cfg.URL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown render driver %q", cfg.Driver)
	}
}

// paperSizeOf reads the paper-size meta tag written by core.Shell.
// Documents without one print on Letter.
func paperSizeOf(doc *html.Node) core.PaperSize {
	var size core.PaperSize
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == core.PaperSizeMeta {
			if p, err := core.ParsePaperSize(attr(n, "content")); err == nil {
				size = p
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	if size == "" {
		return core.PaperLetter
	}
	return size
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

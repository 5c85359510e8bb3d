package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// Font sizes in points, matching the pixel sizes of the print stylesheet.
const (
	bodySize   = 9.0
	lineFactor = 1.5
	listIndent = 18.0
	cellPad    = 4.0
)

var headingSize = map[atom.Atom]float64{
	atom.H1: 18,
	atom.H2: 15,
	atom.H3: 12,
	atom.H4: 10.5,
	atom.H5: 9,
	atom.H6: 9,
}

var gofpdfSize = map[core.PaperSize]string{
	core.PaperLetter: "Letter",
	core.PaperA4:     "A4",
	core.PaperLegal:  "Legal",
}

// DejaVu Sans (shipped with gofpdf) covers Latin, Greek and Cyrillic. Text in
// other scripts, such as CJK or emoji, prints as missing glyphs; use the
// chrome backend for those documents.
const fontFamily = "DejaVu"

//go:embed fonts/*.ttf
var fontFiles embed.FS

var fontStyles = []struct{ style, file string }{
	{"", "fonts/DejaVuSansCondensed.ttf"},
	{"B", "fonts/DejaVuSansCondensed-Bold.ttf"},
	{"I", "fonts/DejaVuSansCondensed-Oblique.ttf"},
	{"BI", "fonts/DejaVuSansCondensed-BoldOblique.ttf"},
}

func addFonts(pdf *gofpdf.Fpdf) {
	for _, f := range fontStyles {
		data, err := fontFiles.ReadFile(f.file)
		if err != nil {
			pdf.SetError(fmt.Errorf("load font: %w", err))
			return
		}
		pdf.AddUTF8FontFromBytes(fontFamily, f.style, data)
	}
}

// Local renders documents in process with gofpdf. It covers the markup
// the editor produces; scripts and external styles are ignored.
type Local struct{}

// NewLocal returns a Local backend.
func NewLocal() *Local { return &Local{} }

// Close is a no-op.
func (*Local) Close() error { return nil }

// Render lays doc out on pages of the size named by its paper-size meta.
func (*Local) Render(ctx context.Context, doc string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	margin := marginInches * 72
	pdf := gofpdf.New("P", "pt", gofpdfSize[paperSizeOf(root)], "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	addFonts(pdf)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", bodySize)

	w := &layout{pdf: pdf}
	if body := findBody(root); body != nil {
		w.blocks(body)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// style is the inline emphasis in effect for a run of text.
type style struct {
	bold, italic, underline bool
}

func (s style) String() string {
	var b strings.Builder
	if s.bold {
		b.WriteByte('B')
	}
	if s.italic {
		b.WriteByte('I')
	}
	if s.underline {
		b.WriteByte('U')
	}
	return b.String()
}

func (s style) with(n *html.Node) style {
	switch n.DataAtom {
	case atom.B, atom.Strong, atom.Th:
		s.bold = true
	case atom.I, atom.Em:
		s.italic = true
	case atom.U:
		s.underline = true
	}
	if hasClass(n, "bold") {
		s.bold = true
	}
	if hasClass(n, "italic") {
		s.italic = true
	}
	if hasClass(n, "underline") {
		s.underline = true
	}
	return s
}

type layout struct {
	pdf *gofpdf.Fpdf
}

func lineHeight(size float64) float64 { return size * lineFactor }

// blocks lays out the children of a container. Loose inline content
// between block elements is flowed as an anonymous paragraph.
func (l *layout) blocks(n *html.Node) {
	pending := false
	flush := func() {
		if pending {
			l.pdf.Ln(lineHeight(bodySize))
			pending = false
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if strings.TrimSpace(c.Data) != "" {
				l.inline(c, style{}, bodySize)
				pending = true
			}
			continue
		}
		if c.Type != html.ElementNode {
			continue
		}

		switch c.DataAtom {
		case atom.Head, atom.Style, atom.Script, atom.Title:
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			flush()
			l.paragraph(c, headingSize[c.DataAtom], style{bold: true})
		case atom.P:
			flush()
			l.paragraph(c, bodySize, style{})
		case atom.Ul, atom.Ol:
			flush()
			l.list(c)
			l.pdf.Ln(bodySize / 2)
		case atom.Table:
			flush()
			l.table(c)
		case atom.Hr:
			flush()
			left, _, right, _ := l.pdf.GetMargins()
			pw, _ := l.pdf.GetPageSize()
			y := l.pdf.GetY() + bodySize/2
			l.pdf.Line(left, y, pw-right, y)
			l.pdf.Ln(bodySize)
		case atom.Div, atom.Section, atom.Article, atom.Blockquote, atom.Main, atom.Header, atom.Footer:
			flush()
			l.blocks(c)
		default:
			l.inline(c, style{}, bodySize)
			pending = true
		}
	}
	flush()
}

func (l *layout) paragraph(n *html.Node, size float64, st style) {
	l.inline(n, st.with(n), size)
	l.pdf.Ln(lineHeight(size))
	l.pdf.Ln(size / 2)
}

// inline flows the text under n at the current position.
func (l *layout) inline(n *html.Node, st style, size float64) {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text == "" {
			return
		}
		l.pdf.SetFont(fontFamily, st.String(), size)
		l.pdf.Write(lineHeight(size), text)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			l.pdf.Ln(lineHeight(size))
			return
		}
		st = st.with(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.inline(c, st, size)
	}
}

func (l *layout) list(n *html.Node) {
	left, _, _, _ := l.pdf.GetMargins()
	l.pdf.SetLeftMargin(left + listIndent)
	defer l.pdf.SetLeftMargin(left)

	ordered := n.DataAtom == atom.Ol
	item := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		item++
		marker := "•"
		if ordered {
			marker = strconv.Itoa(item) + "."
		}
		l.pdf.SetFont(fontFamily, "", bodySize)
		l.pdf.SetX(left + listIndent/3)
		l.pdf.Write(lineHeight(bodySize), marker)
		l.pdf.SetX(left + listIndent)

		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				l.pdf.Ln(lineHeight(bodySize))
				l.list(c)
				continue
			}
			l.inline(c, style{}, bodySize)
		}
		l.pdf.Ln(lineHeight(bodySize))
	}
}

// table draws a bordered grid with equal column widths. Cell text that
// does not fit is cut short.
func (l *layout) table(n *html.Node) {
	var rows [][]*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				collect(c)
			case atom.Tr:
				var cells []*html.Node
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
						cells = append(cells, td)
					}
				}
				rows = append(rows, cells)
			}
		}
	}
	collect(n)

	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}

	left, _, right, _ := l.pdf.GetMargins()
	pw, _ := l.pdf.GetPageSize()
	width := (pw - left - right) / float64(cols)
	height := lineHeight(bodySize) + cellPad

	for _, r := range rows {
		for i := 0; i < cols; i++ {
			text, st := "", style{}
			if i < len(r) {
				text = collapseSpace(textContent(r[i]))
				st = st.with(r[i])
			}
			l.pdf.SetFont(fontFamily, st.String(), bodySize)
			text = l.fit(text, width-cellPad)
			l.pdf.CellFormat(width, height, text, "1", 0, "L", false, 0, "")
		}
		l.pdf.Ln(-1)
	}
	l.pdf.Ln(bodySize / 2)
}

func (l *layout) fit(s string, width float64) string {
	r := []rune(s)
	for len(r) > 0 && l.pdf.GetStringWidth(string(r)) > width {
		r = r[:len(r)-1]
	}
	return string(r)
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// collapseSpace folds whitespace runs to a single space the way HTML does.
func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	lead := isSpace(s[0])
	trail := isSpace(s[len(s)-1])
	out := strings.Join(strings.Fields(s), " ")
	if out == "" {
		return " "
	}
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

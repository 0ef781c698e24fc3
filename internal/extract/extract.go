// Package extract turns stored document bytes into plain text for chunking.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Supported MIME types.
const (
	TypePlain    = "text/plain"
	TypeMarkdown = "text/markdown"
	TypeHTML     = "text/html"
)

// ErrUnsupportedType is returned for content types that need an external
// parser, such as PDF or DOCX.
var ErrUnsupportedType = errors.New("unsupported content type")

// Result is the extracted text of a document and the title found in it, if any.
type Result struct {
	Text  string
	Title string
}

var extensionTypes = map[string]string{
	".txt":      TypePlain,
	".text":     TypePlain,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DetectType guesses a MIME type from a filename extension.
func DetectType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return normalize(t)
	}
	return "application/octet-stream"
}

// Supported reports whether Text can handle mimeType.
func Supported(mimeType string) bool {
	switch normalize(mimeType) {
	case TypePlain, TypeMarkdown, TypeHTML:
		return true
	}
	return false
}

// Text extracts plain text from raw according to mimeType.
func Text(mimeType string, raw []byte) (Result, error) {
	switch normalize(mimeType) {
	case TypePlain:
		return Result{Text: strings.ToValidUTF8(string(raw), "")}, nil
	case TypeMarkdown:
		return markdown(raw)
	case TypeHTML:
		return html(raw)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
}

func normalize(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	if mediaType == "text/x-markdown" {
		return TypeMarkdown
	}
	return mediaType
}

func html(raw []byte) (Result, error) {
	article, err := readability.FromReader(bytes.NewReader(raw), &url.URL{})
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	return Result{
		Text:  strings.TrimSpace(article.TextContent),
		Title: strings.TrimSpace(article.Title),
	}, nil
}

var markdownParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// markdown flattens the document to text. Headings are kept as "#" lines so
// the chunker can split on them; inline markup is dropped.
func markdown(source []byte) (Result, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return Result{}, fmt.Errorf("inspect TOC: %w", err)
	}

	f := &flattener{source: source}
	f.block(doc)

	res := Result{Text: strings.Join(f.blocks, "\n\n")}
	if len(tree.Items) > 0 {
		res.Title = string(tree.Items[0].Title)
	}
	return res, nil
}

type flattener struct {
	source []byte
	blocks []string
}

func (f *flattener) add(s string) {
	if s = strings.TrimRight(s, " \n"); s != "" {
		f.blocks = append(f.blocks, s)
	}
}

func (f *flattener) block(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Heading:
			f.add(strings.Repeat("#", node.Level) + " " + f.inline(node))
		case *ast.Paragraph, *ast.TextBlock:
			f.add(f.inline(node))
		case *ast.List:
			f.add(f.list(node))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			f.add(f.lines(node))
		case *ast.ThematicBreak:
			f.add("---")
		case *ast.HTMLBlock:
		default:
			f.block(node)
		}
	}
}

func (f *flattener) list(l *ast.List) string {
	var lines []string
	n := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n)
			n++
		}
		sub := &flattener{source: f.source}
		sub.block(item)
		lines = append(lines, marker+strings.Join(sub.blocks, "\n"))
	}
	return strings.Join(lines, "\n")
}

func (f *flattener) lines(n ast.Node) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(f.source))
	}
	return b.String()
}

func (f *flattener) inline(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(f.source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(f.source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

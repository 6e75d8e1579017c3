// Package markdown renders Markdown into standalone HTML pages.
package markdown

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultTitle is the page title when none is configured.
const DefaultTitle = "Markdown Render"

// Converter turns Markdown source into an HTML fragment.
type Converter interface {
	Convert(src []byte) ([]byte, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(src []byte) ([]byte, error)

func (f ConverterFunc) Convert(src []byte) ([]byte, error) { return f(src) }

type goldmarkConverter struct {
	md goldmark.Markdown
}

// NewConverter returns a CommonMark converter with the GFM extensions. Raw
// HTML in the source is dropped from the output.
func NewConverter() Converter {
	return &goldmarkConverter{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (c *goldmarkConverter) Convert(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	docHead = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: Arial, sans-serif; padding: 2rem; line-height: 1.6; }
    h1, h2, h3 { color: #333; }
    code { background: #f4f4f4; padding: 0.2rem 0.4rem; border-radius: 4px; }
    pre { background: #f4f4f4; padding: 1rem; border-radius: 4px; overflow-x: auto; }
  </style>
  <title>`
	docBody = `</title>
</head>
<body>
`
	docTail = `
</body>
</html>
`
)

// Document wraps an HTML fragment into a complete page.
func Document(title string, fragment []byte) []byte {
	if title == "" {
		title = DefaultTitle
	}
	t := html.EscapeString(title)
	out := make([]byte, 0, len(docHead)+len(t)+len(docBody)+len(fragment)+len(docTail))
	out = append(out, docHead...)
	out = append(out, t...)
	out = append(out, docBody...)
	out = append(out, fragment...)
	return append(out, docTail...)
}

// Render converts src with c and wraps the result with Document.
func Render(c Converter, title string, src []byte) ([]byte, error) {
	frag, err := c.Convert(src)
	if err != nil {
		return nil, err
	}
	return Document(title, frag), nil
}

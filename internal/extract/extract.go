// Package extract converts raw document payloads into plain text for
// tokenization. Markup is parsed with golang.org/x/net/html; script, style
// and similar non-content elements are dropped.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoContent is returned when a payload yields no visible text.
var ErrNoContent = errors.New("no extractable content")

var skipElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// Text returns the visible text of raw, with text nodes joined by single
// spaces.
func Text(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", ErrNoContent
	}
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing markup: %w", err)
	}
	var b strings.Builder
	collect(doc, &b)
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

func collect(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if _, skip := skipElements[n.Data]; skip {
			return
		}
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(s)
		}
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, b)
	}
}

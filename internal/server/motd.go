package server

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts the stored MOTD markdown to HTML for clients
// that want a rendered view.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	_ = goldmark.Convert([]byte(md), &buf)
	return buf.String()
}

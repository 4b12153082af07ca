// ABOUTME: Converts Markdown replies into Matrix message content
// ABOUTME: Renders HTML with goldmark and keeps the Markdown source as the plain body

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"maunium.net/go/mautrix/event"

	"github.com/2389/ally-gateway/internal/pipeline"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown converts Markdown to an HTML fragment without a trailing newline.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	out := strings.TrimSpace(buf.String())
	// Single paragraphs render without the wrapper, like most Matrix clients send them.
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out, nil
}

// messageContent builds the event content for a reply.
func messageContent(text string, opts pipeline.FormatOptions) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if !opts.Markdown {
		return content
	}
	rendered, err := renderMarkdown(text)
	if err != nil || rendered == text {
		return content
	}
	content.Format = event.FormatHTML
	content.FormattedBody = rendered
	return content
}

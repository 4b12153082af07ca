// ABOUTME: Tests for Markdown reply rendering
// ABOUTME: Checks HTML output and the plain-text fallback

package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"

	"github.com/2389/ally-gateway/internal/pipeline"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := renderMarkdown("Meeting **confirmed** at 10:00")
	require.NoError(t, err)
	assert.Equal(t, "Meeting <strong>confirmed</strong> at 10:00", out)
}

func TestRenderMarkdown_Paragraphs(t *testing.T) {
	out, err := renderMarkdown("first\n\nsecond")
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p>\n<p>second</p>", out)
}

func TestRenderMarkdown_Link(t *testing.T) {
	out, err := renderMarkdown("[Grant access](https://accounts.example.com/auth)")
	require.NoError(t, err)
	assert.Equal(t, `<a href="https://accounts.example.com/auth">Grant access</a>`, out)
}

func TestMessageContent(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		c := messageContent("*soon*", pipeline.FormatOptions{Markdown: true})
		assert.Equal(t, event.MsgText, c.MsgType)
		assert.Equal(t, "*soon*", c.Body)
		assert.Equal(t, event.FormatHTML, c.Format)
		assert.Equal(t, "<em>soon</em>", c.FormattedBody)
	})

	t.Run("plain", func(t *testing.T) {
		c := messageContent("*soon*", pipeline.FormatOptions{})
		assert.Equal(t, "*soon*", c.Body)
		assert.Empty(t, c.Format)
		assert.Empty(t, c.FormattedBody)
	})

	t.Run("markdown without markup", func(t *testing.T) {
		c := messageContent("just words", pipeline.FormatOptions{Markdown: true})
		assert.Empty(t, c.Format)
	})
}

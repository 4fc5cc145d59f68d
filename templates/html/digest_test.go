package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderUnreadDigest(t *testing.T) {
	htmlContent, plain := RenderUnreadDigest("Alice <Obras>", 3, 1, "https://connecmaq.example")

	assert.Equal(t, "Hi Alice <Obras>,\n\nYou have 3 unread messages waiting in 1 conversation.\n\nOpen your inbox at https://connecmaq.example to reply.", plain)
	assert.Contains(t, htmlContent, "<h1>You have unread messages</h1>")
	assert.Contains(t, htmlContent, "Hi Alice &lt;Obras&gt;,<br><br>You have 3 unread messages")
	assert.NotContains(t, htmlContent, "<Obras>")
}

func TestRenderUnreadDigestWithoutLink(t *testing.T) {
	_, plain := RenderUnreadDigest("bruno", 1, 2, "")
	assert.Equal(t, "Hi bruno,\n\nYou have 1 unread message waiting in 2 conversations.", plain)
}

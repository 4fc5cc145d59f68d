package templates

import "fmt"

// DigestSubject is the subject line of the unread message digest
const DigestSubject = "You have unread messages"

// RenderUnreadDigest returns the HTML and plain text bodies of the unread message digest.
// baseURL is where the recipient can open their conversations and may be empty.
func RenderUnreadDigest(displayName string, unread, rooms int, baseURL string) (htmlContent, plainText string) {
	plainText = fmt.Sprintf("Hi %s,\n\nYou have %s waiting in %s.", displayName, plural(unread, "unread message"), plural(rooms, "conversation"))
	if baseURL != "" {
		plainText += fmt.Sprintf("\n\nOpen your inbox at %s to reply.", baseURL)
	}
	return RenderGenericEmail(DigestSubject, plainText), plainText
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ABOUTME: Classifies chat input as an email address or a passcode
// ABOUTME: Shared by the identity stage and the auth rate limiter

package otp

import (
	"net/mail"
	"strings"
)

// IsCode reports whether text is exactly CodeLength ASCII digits after trimming.
func IsCode(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) != CodeLength {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LooksLikeEmail reports whether text is a bare address like "name@example.com".
// Display-name forms ("Name <a@b.c>") are rejected.
func LooksLikeEmail(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(text)
	if err != nil || addr.Address != text {
		return false
	}
	at := strings.LastIndexByte(text, '@')
	domain := text[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

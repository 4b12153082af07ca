// ABOUTME: Tests for passcode and email input classification
// ABOUTME: Covers whitespace trimming and display-name rejection

package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode("123456"))
	assert.True(t, IsCode(" 012345\n"))
	assert.False(t, IsCode("12345"))
	assert.False(t, IsCode("1234567"))
	assert.False(t, IsCode("12a456"))
	assert.False(t, IsCode("١٢٣٤٥٦"))
}

func TestLooksLikeEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@example.com", "  USER@Example.ORG "}
	for _, v := range valid {
		assert.True(t, LooksLikeEmail(v), v)
	}

	invalid := []string{"", "hello", "a@b", "a@b.", "@b.com", "Name <a@b.com>", "a b@c.com", "123456"}
	for _, v := range invalid {
		assert.False(t, LooksLikeEmail(v), v)
	}
}

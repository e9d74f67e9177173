package signer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Deterministic(t *testing.T) {
	a := Sign("secret", "nonce|https://app/cb")
	b := Sign("secret", "nonce|https://app/cb")

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestSign_DifferentInputsDifferentTags(t *testing.T) {
	base := Sign("secret", "message")

	assert.NotEqual(t, base, Sign("secret", "other"))
	assert.NotEqual(t, base, Sign("other-secret", "message"))
}

func TestSign_URLSafeNoPadding(t *testing.T) {
	// 256-bit digest -> 43 chars of the url-safe alphabet, no padding
	tag := Sign("secret", "some|message/with+chars=")

	assert.Len(t, tag, 43)
	assert.False(t, strings.ContainsAny(tag, "+/="), "tag must be url-safe: %s", tag)
}

func TestEqual(t *testing.T) {
	tag := Sign("secret", "message")

	assert.True(t, Equal(tag, Sign("secret", "message")))
	assert.False(t, Equal(tag, Sign("secret", "message2")))
	assert.False(t, Equal(tag, ""))
}

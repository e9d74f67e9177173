package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	state, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)

	assert.NoError(t, VerifyState("secret", state, "https://app/cb"))
}

func TestStateFormat(t *testing.T) {
	state, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)

	nonce, tag, found := strings.Cut(state, ".")
	require.True(t, found)
	assert.Len(t, nonce, 32) // 16 random bytes, hex
	assert.NotEmpty(t, tag)
}

func TestStateUniquePerIssue(t *testing.T) {
	a, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)
	b, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyState_RedirectBinding(t *testing.T) {
	state, err := IssueState("secret", "https://a")
	require.NoError(t, err)

	assert.ErrorIs(t, VerifyState("secret", state, "https://b"), ErrStateMismatch)
}

func TestVerifyState_WrongSecret(t *testing.T) {
	state, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)

	assert.ErrorIs(t, VerifyState("other", state, "https://app/cb"), ErrStateMismatch)
}

func TestVerifyState_TamperedTag(t *testing.T) {
	state, err := IssueState("secret", "https://app/cb")
	require.NoError(t, err)

	nonce, _, _ := strings.Cut(state, ".")
	assert.ErrorIs(t, VerifyState("secret", nonce+".forged-tag", "https://app/cb"), ErrStateMismatch)
}

func TestVerifyState_MalformedFailsClosed(t *testing.T) {
	for _, state := range []string{"", "no-separator", ".tag-only", "nonce-only.", "."} {
		assert.ErrorIs(t, VerifyState("secret", state, "https://app/cb"), ErrStateMalformed, "state %q", state)
	}
}
